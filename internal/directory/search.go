package directory

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
)

const (
	// Scoring weights
	ScoreExactMatch     = 100.0
	ScorePrefixMatch    = 75.0
	ScoreSubstringMatch = 50.0
	ScoreFuzzyMatch     = 25.0

	// Position bonus (earlier token is better)
	ScorePositionBonus = 10.0

	// Short ids get a small boost
	ScoreLengthBonus = 5.0

	// Query equal to the supplier id
	ScoreExactIDBonus = 200.0

	// Redirect counter contribution
	ScoreUsageWeight = 0.1
)

// Query is a parsed redirect search
type Query struct {
	Raw       string
	Fragments []string
}

// ParseQuery lowercases the input and splits it into fragments on spaces,
// dashes, underscores and dots.
//   - "torrent gas" -> ["torrent", "gas"]
//   - "amc-water"   -> ["amc", "water"]
func ParseQuery(input string) *Query {
	input = strings.TrimSpace(strings.ToLower(input))
	q := &Query{Raw: input}
	if input == "" {
		return q
	}

	q.Fragments = strings.FieldsFunc(input, isSeparator)
	return q
}

// Candidate is a supplier with its match score
type Candidate struct {
	Supplier     domain.Supplier
	LexicalScore float64
	UsageScore   float64
	TotalScore   float64
}

// Score calculates how well a supplier matches the query
func Score(q *Query, s *domain.Supplier) float64 {
	if q == nil || s == nil || len(q.Fragments) == 0 {
		return 0.0
	}

	if normalizeFragment(q.Raw) == normalizeFragment(s.ID) {
		return ScoreExactMatch + ScoreExactIDBonus
	}

	tokens := supplierTokens(s)
	if len(tokens) == 0 {
		return 0.0
	}

	var total float64
	for _, frag := range q.Fragments {
		best := 0.0
		for i, tok := range tokens {
			if score := scoreFragment(frag, tok, i); score > best {
				best = score
			}
		}
		total += best
	}

	if total > 0 && len(s.ID) < 10 {
		total += ScoreLengthBonus
	}
	return total
}

// Rank scores every supplier and returns the matches, best first.
// Ties keep directory order.
func Rank(q *Query, suppliers []domain.Supplier) []*Candidate {
	candidates := make([]*Candidate, 0, len(suppliers))

	for i := range suppliers {
		s := &suppliers[i]

		lexical := Score(q, s)
		if lexical == 0.0 {
			continue
		}

		// logarithmic so a popular supplier cannot drown a better lexical match
		usage := 0.0
		if s.Counter > 0 {
			usage = math.Log10(float64(s.Counter)+1) * ScoreUsageWeight * 100
		}

		candidates = append(candidates, &Candidate{
			Supplier:     *s,
			LexicalScore: lexical,
			UsageScore:   usage,
			TotalScore:   lexical + usage,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].TotalScore > candidates[j].TotalScore
	})
	return candidates
}

// FindBestMatch returns the best matching supplier for a query
func FindBestMatch(q *Query, suppliers []domain.Supplier) (domain.Supplier, bool) {
	candidates := Rank(q, suppliers)
	if len(candidates) == 0 {
		return domain.Supplier{}, false
	}
	return candidates[0].Supplier, true
}

// supplierTokens returns id fragments first, then name words.
func supplierTokens(s *domain.Supplier) []string {
	raw := strings.FieldsFunc(strings.ToLower(s.ID), isSeparator)
	raw = append(raw, strings.FieldsFunc(strings.ToLower(s.Name), func(r rune) bool {
		return isSeparator(r) || r == '(' || r == ')' || r == ','
	})...)

	tokens := make([]string, 0, len(raw))
	for _, t := range raw {
		if t = normalizeFragment(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func scoreFragment(queryFrag, token string, position int) float64 {
	queryFrag = normalizeFragment(queryFrag)
	if queryFrag == "" || token == "" {
		return 0.0
	}

	if queryFrag == token {
		return ScoreExactMatch + calculatePositionBonus(position)
	}

	if strings.HasPrefix(token, queryFrag) {
		return ScorePrefixMatch + calculatePositionBonus(position)
	}

	if i := strings.Index(token, queryFrag); i >= 0 {
		return ScoreSubstringMatch + ScorePositionBonus*(1.0-float64(i)/float64(len(token)))
	}

	if sim := calculateSimilarity(queryFrag, token); sim > 0.5 {
		return ScoreFuzzyMatch * sim
	}

	return 0.0
}

func calculatePositionBonus(position int) float64 {
	return ScorePositionBonus * math.Exp(-float64(position)*0.3)
}

// calculateSimilarity is the share of query characters present in the token
func calculateSimilarity(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0.0
	}

	matches := 0
	for _, c := range s1 {
		if strings.ContainsRune(s2, c) {
			matches++
		}
	}
	return float64(matches) / float64(len([]rune(s1)))
}

func normalizeFragment(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, s)
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '_' || r == '.' || r == '/'
}
