package reddit

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hearkenhq/hearken/internal/models"
)

// BuildQuery translates the canonical search query into reddit syntax:
// keywords quoted and OR-joined, negative keywords as -term exclusions.
func BuildQuery(q models.SearchQuery) string {
	quoted := make([]string, 0, len(q.Keywords))
	for _, kw := range q.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		quoted = append(quoted, `"`+kw+`"`)
	}

	query := strings.Join(quoted, " OR ")
	for _, neg := range q.NegativeKeywords {
		neg = strings.TrimSpace(neg)
		if neg == "" {
			continue
		}
		query += " -" + neg
	}

	return query
}

// cursor carries one provider continuation token per sub-search so a page
// boundary can resume both the post and the comment searches.
type cursor struct {
	Link    string `json:"link,omitempty"`
	Comment string `json:"comment,omitempty"`
}

func (c cursor) empty() bool { return c.Link == "" && c.Comment == "" }

// encodeCursor serializes a cursor into the opaque token handed to callers.
func encodeCursor(c cursor) string {
	if c.empty() {
		return ""
	}
	data, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(data)
}

// decodeCursor parses an opaque continuation token.
func decodeCursor(token string) (cursor, error) {
	if token == "" {
		return cursor{}, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}

	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return cursor{}, fmt.Errorf("invalid cursor: %w", err)
	}
	return c, nil
}
