package stats

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/metafile"
	"github.com/franz/crawl-janitor/internal/util"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Count is an accumulated count for a key
type Count struct {
	Key   string
	Count int64
}

// Keyphrase is one line of a keyphrase list with its lower-cased words
type Keyphrase struct {
	Text  string
	words []string
}

// MatchStats holds the per-match and per-keyphrase totals, each sorted by
// count descending
type MatchStats struct {
	Matches    []Count
	Keyphrases []Count

	LinesRead    int
	LinesSkipped int
}

// lower folds s for word comparison. A Caser is not safe for concurrent
// use, so each caller passes its own.
func lower(c cases.Caser, s string) string {
	return c.String(norm.NFC.String(s))
}

// LoadKeyphrases reads one keyphrase per line, ignoring blank lines
func LoadKeyphrases(path string) ([]Keyphrase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyphrases: %w", err)
	}
	defer f.Close()

	caser := cases.Lower(language.Und)
	var phrases []Keyphrase
	lr := metafile.NewLineReader(f)
	for {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		words := strings.Fields(lower(caser, line))
		if len(words) == 0 {
			continue
		}
		phrases = append(phrases, Keyphrase{Text: line, words: words})
	}

	util.DebugLog("loaded %d keyphrases", len(phrases))
	return phrases, nil
}

// matches reports whether the match words line up with the keyphrase words,
// each match word containing its keyphrase word
func (k Keyphrase) matches(words []string) bool {
	if len(words) != len(k.words) {
		return false
	}
	for i, w := range words {
		if !strings.Contains(w, k.words[i]) {
			return false
		}
	}
	return true
}

// MatchStatistics totals the counts of a matches file per matched phrase
// and per keyphrase. Lines whose count is not an integer are skipped with a
// warning.
func MatchStatistics(phrases []Keyphrase, matchesPath string) (*MatchStats, error) {
	caser := cases.Lower(language.Und)
	perMatch := make(map[string]int64)
	perPhrase := make(map[string]int64)
	result := &MatchStats{}

	err := metafile.Each(matchesPath, func(line int, fields []string) error {
		result.LinesRead++

		rec, err := archive.ParseMatchRecord(fields)
		if err != nil {
			util.WarnLog("%s:%d: %v", matchesPath, line, err)
			result.LinesSkipped++
			return nil
		}
		n, err := strconv.ParseInt(rec.Count, 10, 64)
		if err != nil {
			util.WarnLog("%s:%d: not a valid number: %s", matchesPath, line, rec.Count)
			result.LinesSkipped++
			return nil
		}

		perMatch[rec.Phrase] += n
		words := strings.Split(lower(caser, rec.Phrase), " ")
		for _, k := range phrases {
			if k.matches(words) {
				perPhrase[k.Text] += n
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Matches = sortCounts(perMatch)
	result.Keyphrases = sortCounts(perPhrase)
	return result, nil
}

func sortCounts(m map[string]int64) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Key: k, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// WriteCounts writes one "count\tkey" line per entry
func WriteCounts(w io.Writer, counts []Count) error {
	bw := bufio.NewWriter(w)
	for _, c := range counts {
		if _, err := fmt.Fprintf(bw, "%d\t%s\n", c.Count, c.Key); err != nil {
			return err
		}
	}
	return bw.Flush()
}
