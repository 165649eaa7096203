// Package seed imports hand-written example solutions as specific notes.
//
// The expected layout is one directory per category, holding three files per
// problem:
//
//	MT_MR_TA/prob_0_description.txt
//	MT_MR_TA/prob_0_analysis.txt
//	MT_MR_TA/prob_0.py            (or prob_0_<anything>.py)
//
// Directory names may use dataset abbreviations; they are normalized with
// category.Normalize.
package seed

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/expmem/category"
)

// Adder receives one call per complete example. *memory.Store satisfies it.
type Adder interface {
	AddSpecific(ctx context.Context, description, analysis, artifact, tag string) string
}

// Report summarizes an import.
type Report struct {
	Added      int
	Incomplete []string // "<dir>/prob_<n>" entries missing a file
	IDs        []string
}

var probNumber = regexp.MustCompile(`^prob_(\d+)(?:[_.]|$)`)

type example struct {
	dir         string
	n           int
	description string
	analysis    string
	artifact    string
}

func (e *example) complete() bool {
	return e.description != "" && e.analysis != "" && e.artifact != ""
}

// Import walks fsys and adds every complete example through a.
func Import(ctx context.Context, fsys fs.FS, a Adder) (Report, error) {
	var report Report
	examples := make(map[string]*example)

	collect := func(pattern string, set func(e *example, file string)) error {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, m := range matches {
			dir, file := path.Split(m)
			sub := probNumber.FindStringSubmatch(file)
			if sub == nil {
				continue
			}
			n, err := strconv.Atoi(sub[1])
			if err != nil {
				continue
			}
			dir = path.Clean(dir)
			key := fmt.Sprintf("%s/%d", dir, n)
			e, ok := examples[key]
			if !ok {
				e = &example{dir: dir, n: n}
				examples[key] = e
			}
			set(e, m)
		}
		return nil
	}

	err := collect("*/prob_*_description.txt", func(e *example, file string) { e.description = file })
	if err == nil {
		err = collect("*/prob_*_analysis.txt", func(e *example, file string) { e.analysis = file })
	}
	if err == nil {
		err = collect("*/prob_*.py", func(e *example, file string) {
			// Several solution files per problem: keep the first in lexical order.
			if e.artifact == "" || file < e.artifact {
				e.artifact = file
			}
		})
	}
	if err != nil {
		return report, err
	}

	ordered := make([]*example, 0, len(examples))
	for _, e := range examples {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].dir != ordered[j].dir {
			return ordered[i].dir < ordered[j].dir
		}
		return ordered[i].n < ordered[j].n
	})

	for _, e := range ordered {
		name := fmt.Sprintf("%s/prob_%d", e.dir, e.n)
		if !e.complete() {
			log.WithField("example", name).Warn("[SEED] Skipping incomplete example")
			report.Incomplete = append(report.Incomplete, name)
			continue
		}
		description, err := fs.ReadFile(fsys, e.description)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", e.description, err)
		}
		analysis, err := fs.ReadFile(fsys, e.analysis)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", e.analysis, err)
		}
		artifact, err := fs.ReadFile(fsys, e.artifact)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", e.artifact, err)
		}

		tag := category.Normalize(e.dir)
		if err := category.Validate(tag); err != nil {
			log.WithField("example", name).WithError(err).Warn("[SEED] Directory is not a category")
		}
		id := a.AddSpecific(ctx, string(description), string(analysis), string(artifact), tag)
		report.IDs = append(report.IDs, id)
		report.Added++
		log.WithFields(log.Fields{"example": name, "id": id, "category": tag}).Debug("[SEED] Added example")
	}

	log.Infof("[SEED] Imported %d examples, %d incomplete", report.Added, len(report.Incomplete))
	return report, nil
}
