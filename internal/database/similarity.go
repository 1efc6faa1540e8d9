package database

import (
	"sort"
	"strings"
	"time"
)

// FindSimilar is the store's fuzzy text-similarity capability: it scores the
// query text against articles published since the cutoff and returns up to
// limit candidates, best first, each annotated with its cluster assignment.
// The excludeID article (the one being assigned) is never a candidate.
func (db *DB) FindSimilar(text, excludeID string, since time.Time, limit int) ([]SimilarArticle, error) {
	rows, err := db.conn.Query(
		`SELECT id, title, snippet, full_text, cluster_id
		FROM articles WHERE published_at >= ? AND id != ?`,
		formatTime(since), excludeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	query := bigrams(normalize(text))
	if len(query) == 0 {
		return nil, nil
	}

	var candidates []SimilarArticle
	for rows.Next() {
		var id, title, snippet string
		var fullText, clusterID *string
		if err := rows.Scan(&id, &title, &snippet, &fullText, &clusterID); err != nil {
			return nil, err
		}

		candidate := title + " " + snippet
		if fullText != nil {
			// Cap the body contribution so long articles don't drown the title.
			body := *fullText
			if len(body) > 1000 {
				body = body[:1000]
			}
			candidate += " " + body
		}

		score := diceCoefficient(query, bigrams(normalize(candidate)))
		if score <= 0 {
			continue
		}
		candidates = append(candidates, SimilarArticle{
			ArticleID:  id,
			Similarity: score,
			ClusterID:  clusterID,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// bigrams returns the multiset of character bigrams in s as counts.
func bigrams(s string) map[string]int {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	grams := make(map[string]int, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

// diceCoefficient computes the Sørensen–Dice similarity of two bigram
// multisets: 2*|intersection| / (|a| + |b|), in [0, 1].
func diceCoefficient(a, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var sizeA, sizeB, overlap int
	for g, n := range a {
		sizeA += n
		if m, ok := b[g]; ok {
			if m < n {
				overlap += m
			} else {
				overlap += n
			}
		}
	}
	for _, n := range b {
		sizeB += n
	}

	return 2 * float64(overlap) / float64(sizeA+sizeB)
}
