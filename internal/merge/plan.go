package merge

import (
	"context"
	"fmt"
	"sort"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/metafile"
	"github.com/franz/crawl-janitor/internal/util"
)

// Reason explains why a record was retained
type Reason string

const (
	ReasonSingle       Reason = "single"
	ReasonShortlist    Reason = "on shortlist"
	ReasonLast         Reason = "last"
	ReasonTokensDiffer Reason = "tokens differ"
)

// Member is one Files record of one source archive
type Member struct {
	Source int
	Record archive.FilesRecord
}

// Group is every record, across all sources, crawled from one URL
type Group struct {
	URL     string
	Members []Member

	// Filled in by the tie-break
	Retained  Member
	Reason    Reason
	Differ    []Member
	Discarded []Member
}

// LogEntry is one line of the duplication log
type LogEntry struct {
	Retained string
	Reason   Reason
	Others   []string
}

// Plan is everything Merge will write, computed without writing
type Plan struct {
	Sources []archive.Archive
	Groups  []*Group

	// Per source, the names whose metadata rows are carried over
	RetainedOriginals []archive.Set
	RetainedTexts     []archive.Set
	RetainedPosLemma  []archive.Set

	// Retained records in group order, each source record once
	Retained []Member

	Log []LogEntry

	FilesWithoutURL    int
	ShortlistConflicts int
}

// Discarded counts records dropped as duplicates
func (p *Plan) Discarded() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Discarded)
	}
	return n
}

// Plan groups records by URL, resolves each group and checks that the
// retained records can share one destination. It reads the sources only.
func (m *Merger) Plan(ctx context.Context) (*Plan, error) {
	plan := &Plan{Sources: m.sources}

	if err := m.group(ctx, plan); err != nil {
		return nil, err
	}

	for _, g := range plan.Groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := m.resolve(plan, g); err != nil {
			return nil, err
		}
	}

	if err := m.guard(plan); err != nil {
		return nil, err
	}

	plan.Log = duplicationLog(plan)

	util.InfoLog("planned merge of %d sources: %d url groups, %d retained, %d duplicates",
		len(plan.Sources), len(plan.Groups), len(plan.Retained), plan.Discarded())
	if plan.FilesWithoutURL > 0 {
		util.WarnLog("%d files records without url were skipped", plan.FilesWithoutURL)
	}

	return plan, nil
}

// group reads every source's url and files metadata into URL groups,
// in order of first appearance
func (m *Merger) group(ctx context.Context, plan *Plan) error {
	byURL := make(map[string]*Group)

	for i, src := range m.sources {
		if err := ctx.Err(); err != nil {
			return err
		}

		urlOf := make(map[string]string)
		err := metafile.Each(src.URLsPath(), func(_ int, fields []string) error {
			rec, err := archive.ParseURLRecord(fields)
			if err != nil {
				return nil
			}
			// a later row for the same file wins
			urlOf[rec.Filename] = rec.URL
			return nil
		})
		if err != nil {
			return err
		}

		filesPath := src.FilesPath()
		err = metafile.Each(filesPath, func(line int, fields []string) error {
			rec, err := archive.ParseFilesRecord(fields)
			if err != nil {
				return fmt.Errorf("%s:%d: %w", filesPath, line, err)
			}

			url, ok := urlOf[rec.Original]
			if !ok {
				util.WarnLog("file without URL: %s in %s", rec.Original, src.Root)
				plan.FilesWithoutURL++
				return nil
			}

			g, ok := byURL[url]
			if !ok {
				g = &Group{URL: url}
				byURL[url] = g
				plan.Groups = append(plan.Groups, g)
			}
			g.Members = append(g.Members, Member{Source: i, Record: rec})
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

// resolve picks the retained record of a group and splits the others into
// differing (also retained) and discarded by comparing tokens
func (m *Merger) resolve(plan *Plan, g *Group) error {
	if len(g.Members) == 1 {
		g.Retained = g.Members[0]
		g.Reason = ReasonSingle
		return nil
	}

	anchor := -1
	for i, mem := range g.Members {
		if !m.shortlist.Has(mem.Record.Value(m.column)) {
			continue
		}
		if anchor < 0 {
			anchor = i
			continue
		}
		plan.ShortlistConflicts++
		util.WarnLog("url %s: %s and %s are both on the shortlist, keeping the first",
			g.URL, g.Members[anchor].Record.Value(m.column), mem.Record.Value(m.column))
	}

	g.Reason = ReasonShortlist
	if anchor < 0 {
		anchor = len(g.Members) - 1
		g.Reason = ReasonLast
	}
	g.Retained = g.Members[anchor]

	anchorTokens := m.sources[g.Retained.Source].Path(archive.StageTokens, g.Retained.Record.Tokens)
	for i, mem := range g.Members {
		if i == anchor {
			continue
		}
		tokens := m.sources[mem.Source].Path(archive.StageTokens, mem.Record.Tokens)
		same, err := metafile.SameLines(tokens, anchorTokens)
		if err != nil {
			return fmt.Errorf("failed to compare tokens of %s: %w", mem.Record.Original, err)
		}
		if same {
			g.Discarded = append(g.Discarded, mem)
		} else {
			g.Differ = append(g.Differ, mem)
			util.DebugLog("%s kept: tokens differ from %s", mem.Record.Original, g.Retained.Record.Original)
		}
	}

	discarded := make([]string, len(g.Discarded))
	for i, d := range g.Discarded {
		discarded[i] = d.Record.Original
	}
	m.events.LogDuplicate(g.URL, g.Retained.Record.Original, string(g.Reason), discarded)

	return nil
}

// guardStages are the stores whose filenames must not be claimed by two
// sources. Tokens and Parse are included so no copy overwrites another.
var guardStages = []archive.Stage{
	archive.StageOriginal,
	archive.StageExtractedText,
	archive.StageTokens,
	archive.StagePosLemma,
	archive.StageParse,
}

// copyStages are the stores copied for each retained record
var copyStages = append(append([]archive.Stage{}, guardStages...), archive.StageParserInput)

// guard checks that no retained filename comes from two sources, and
// collects the per-source retained sets
func (m *Merger) guard(plan *Plan) error {
	n := len(m.sources)
	plan.RetainedOriginals = make([]archive.Set, n)
	plan.RetainedTexts = make([]archive.Set, n)
	plan.RetainedPosLemma = make([]archive.Set, n)
	for i := 0; i < n; i++ {
		plan.RetainedOriginals[i] = archive.NewSet()
		plan.RetainedTexts[i] = archive.NewSet()
		plan.RetainedPosLemma[i] = archive.NewSet()
	}

	owner := make(map[archive.Stage]map[string]int, len(guardStages))
	for _, s := range guardStages {
		owner[s] = make(map[string]int)
	}
	seen := make(map[Member]bool)

	for _, g := range plan.Groups {
		kept := append([]Member{g.Retained}, g.Differ...)
		for i, mem := range kept {
			for _, s := range guardStages {
				name := mem.Record.Name(s)
				if name == "" {
					continue
				}
				first, ok := owner[s][name]
				if !ok {
					owner[s][name] = mem.Source
					continue
				}
				if first != mem.Source {
					err := &CollisionError{
						Stage:    s,
						Filename: name,
						First:    m.sources[first].Root,
						Second:   m.sources[mem.Source].Root,
					}
					m.events.LogConflict(s.String(), name, err.First, err.Second)
					return err
				}
			}

			plan.RetainedOriginals[mem.Source].Add(mem.Record.Original)
			plan.RetainedTexts[mem.Source].Add(mem.Record.ExtractedText)
			plan.RetainedPosLemma[mem.Source].Add(mem.Record.PosLemma)

			if !seen[mem] {
				seen[mem] = true
				plan.Retained = append(plan.Retained, mem)

				reason := g.Reason
				if i > 0 {
					reason = ReasonTokensDiffer
				}
				m.events.LogRetain(m.sources[mem.Source].Root, mem.Record.Original, string(reason))
			}
		}
	}

	return nil
}

// duplicationLog builds one entry per multi-member group and one per
// record kept because its tokens differ, sorted by retained filename
func duplicationLog(plan *Plan) []LogEntry {
	var entries []LogEntry
	for _, g := range plan.Groups {
		if len(g.Members) < 2 {
			continue
		}
		anchor := g.Retained.Record.Original

		others := make([]string, 0, len(g.Discarded))
		for _, d := range g.Discarded {
			others = append(others, d.Record.Original)
		}
		entries = append(entries, LogEntry{Retained: anchor, Reason: g.Reason, Others: others})

		for _, d := range g.Differ {
			entries = append(entries, LogEntry{
				Retained: d.Record.Original,
				Reason:   ReasonTokensDiffer,
				Others:   []string{anchor},
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Retained < entries[j].Retained
	})
	return entries
}
