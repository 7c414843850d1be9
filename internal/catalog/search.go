package catalog

import (
	"context"
	"strings"
	"time"
)

// Search runs a full-text query over filenames and paths. kind narrows to
// one catalog ("" searches both). The FTS index is trigger-maintained, so
// results are always consistent with committed rows.
func (c *Catalog) Search(ctx context.Context, query string, kind AssetKind, limit int) ([]*SearchHit, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("search", start, err) }()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	sqlQuery := `
		SELECT a.id, a.volume_id, a.kind, a.relative_path, a.filename
		FROM assets_fts f
		JOIN assets a ON a.id = f.rowid
		WHERE assets_fts MATCH ?`
	args := []any{ftsQuote(query)}

	if kind != "" {
		sqlQuery += ` AND a.kind = ?`
		args = append(args, kind)
	}
	sqlQuery += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, qErr := c.db.QueryContext(ctx, sqlQuery, args...)
	if qErr != nil {
		err = qErr
		return nil, err
	}
	defer rows.Close()

	var hits []*SearchHit
	for rows.Next() {
		var h SearchHit
		if sErr := rows.Scan(&h.AssetID, &h.VolumeID, &h.Kind, &h.RelativePath, &h.Filename); sErr != nil {
			err = sErr
			return nil, err
		}
		hits = append(hits, &h)
	}
	err = rows.Err()
	return hits, err
}

// ftsQuote wraps each term in double quotes so user input with FTS operator
// characters cannot break the MATCH expression.
func ftsQuote(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
