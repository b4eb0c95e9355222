package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/courtwise/sentencing-service/internal/sentencing"
)

// SQLiteStore is the local/dev backend. It implements the same contract as
// the Supabase store: trigram-style fuzzy offence search, token-overlap
// lexical chunk ranking, and cosine fusion for the hybrid path, all computed
// in-process over SQLite rows.
type SQLiteStore struct {
	db *sqlx.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS offence_catalog (
	offence_id              TEXT PRIMARY KEY,
	canonical_name          TEXT NOT NULL,
	short_name              TEXT NOT NULL DEFAULT '',
	offence_category        TEXT NOT NULL DEFAULT '',
	provision               TEXT NOT NULL DEFAULT '',
	guideline_url           TEXT NOT NULL DEFAULT '',
	legislation_url         TEXT NOT NULL DEFAULT '',
	maximum_sentence_type   TEXT NOT NULL DEFAULT '',
	maximum_sentence_amount TEXT NOT NULL DEFAULT '',
	minimum_sentence_code   TEXT NOT NULL DEFAULT '',
	specified_violent       INTEGER NOT NULL DEFAULT 0,
	specified_sexual        INTEGER NOT NULL DEFAULT 0,
	specified_terrorist     INTEGER NOT NULL DEFAULT 0,
	listed_offence          INTEGER NOT NULL DEFAULT 0,
	schedule18a_offence     INTEGER NOT NULL DEFAULT 0,
	schedule19za            INTEGER NOT NULL DEFAULT 0,
	cta_notification        INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sentencing_matrix (
	matrix_id           TEXT PRIMARY KEY,
	guideline_id        TEXT NOT NULL DEFAULT '',
	offence_id          TEXT NOT NULL DEFAULT '',
	culpability         TEXT NOT NULL DEFAULT '',
	harm                TEXT NOT NULL DEFAULT '',
	starting_point_text TEXT NOT NULL DEFAULT '',
	category_range_text TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS offence_guideline_links (
	offence_id   TEXT NOT NULL,
	guideline_id TEXT NOT NULL,
	PRIMARY KEY (offence_id, guideline_id)
);

CREATE TABLE IF NOT EXISTS guideline_chunks (
	chunk_id        TEXT PRIMARY KEY,
	guideline_id    TEXT NOT NULL DEFAULT '',
	offence_id      TEXT,
	section_type    TEXT,
	section_heading TEXT,
	chunk_text      TEXT NOT NULL DEFAULT '',
	source_url      TEXT,
	embedding       TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS calculation_audit (
	audit_id        INTEGER PRIMARY KEY AUTOINCREMENT,
	offence_id      TEXT NOT NULL DEFAULT '',
	request_payload TEXT NOT NULL DEFAULT '{}',
	result_payload  TEXT NOT NULL DEFAULT '{}',
	created_at      TEXT NOT NULL
);
`

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- catalog loading (used by the ETL import and tests) ---

func (s *SQLiteStore) InsertOffence(ctx context.Context, o sentencing.OffenceRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO offence_catalog
		(offence_id, canonical_name, short_name, offence_category, provision,
		 guideline_url, legislation_url, maximum_sentence_type, maximum_sentence_amount,
		 minimum_sentence_code, specified_violent, specified_sexual, specified_terrorist,
		 listed_offence, schedule18a_offence, schedule19za, cta_notification)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OffenceID, o.CanonicalName, o.ShortName, o.OffenceCategory, o.Provision,
		o.GuidelineURL, o.LegislationURL, o.MaximumSentenceType, o.MaximumSentenceAmount,
		o.MinimumSentenceCode, boolToInt(o.SpecifiedViolent), boolToInt(o.SpecifiedSexual),
		boolToInt(o.SpecifiedTerrorist), boolToInt(o.ListedOffence), boolToInt(o.Schedule18AOffence),
		boolToInt(o.Schedule19ZA), boolToInt(o.CTANotification),
	)
	return err
}

func (s *SQLiteStore) InsertMatrixRow(ctx context.Context, row sentencing.MatrixRow) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO sentencing_matrix
		(matrix_id, guideline_id, offence_id, culpability, harm, starting_point_text, category_range_text)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		row.MatrixID, row.GuidelineID, row.OffenceID, row.Culpability, row.Harm,
		row.StartingPointText, row.CategoryRangeText,
	)
	return err
}

func (s *SQLiteStore) LinkOffenceGuideline(ctx context.Context, offenceID, guidelineID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO offence_guideline_links (offence_id, guideline_id) VALUES (?, ?)`,
		offenceID, guidelineID)
	return err
}

func (s *SQLiteStore) InsertGuidelineChunk(ctx context.Context, chunk GuidelineChunk, embedding []float64) error {
	blob, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO guideline_chunks
		(chunk_id, guideline_id, offence_id, section_type, section_heading, chunk_text, source_url, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		chunk.ChunkID, chunk.GuidelineID, nullableString(chunk.OffenceID),
		nullableString(chunk.SectionType), nullableString(chunk.SectionHeading),
		chunk.ChunkText, nullableString(chunk.SourceURL), string(blob),
	)
	return err
}

// --- contract implementation ---

const offenceColumns = `offence_id, canonical_name, short_name, offence_category, provision,
	guideline_url, legislation_url, maximum_sentence_type, maximum_sentence_amount,
	minimum_sentence_code, specified_violent, specified_sexual, specified_terrorist,
	listed_offence, schedule18a_offence, schedule19za, cta_notification`

func (s *SQLiteStore) FetchOffenceByID(ctx context.Context, offenceID string) (*sentencing.OffenceRecord, error) {
	if err := ValidateUUID(offenceID); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+offenceColumns+` FROM offence_catalog WHERE offence_id = ?`, offenceID)
	o, err := scanOffence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewInternalError(err.Error())
	}
	return o, nil
}

func (s *SQLiteStore) SearchOffences(ctx context.Context, query string, limit int) ([]ScoredOffence, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+offenceColumns+` FROM offence_catalog`)
	if err != nil {
		return nil, NewInternalError(err.Error())
	}
	defer rows.Close()

	var scored []ScoredOffence
	for rows.Next() {
		o, err := scanOffence(rows)
		if err != nil {
			return nil, NewInternalError(err.Error())
		}
		score := math.Max(trigramSimilarity(o.CanonicalName, query),
			math.Max(trigramSimilarity(o.ShortName, query), trigramSimilarity(o.Provision, query)))
		scored = append(scored, ScoredOffence{OffenceRecord: *o, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, NewInternalError(err.Error())
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].CanonicalName < scored[j].CanonicalName
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *SQLiteStore) FetchSentencingMatrix(ctx context.Context, offenceID string) ([]sentencing.MatrixRow, error) {
	if err := ValidateUUID(offenceID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sm.matrix_id, sm.guideline_id, sm.offence_id, sm.culpability, sm.harm,
		       sm.starting_point_text, sm.category_range_text
		FROM sentencing_matrix sm
		LEFT JOIN offence_guideline_links ogl ON ogl.guideline_id = sm.guideline_id
		WHERE sm.offence_id = ? OR ogl.offence_id = ?
		ORDER BY sm.matrix_id, sm.guideline_id`, offenceID, offenceID)
	if err != nil {
		return nil, NewInternalError(err.Error())
	}
	defer rows.Close()

	seen := map[string]bool{}
	var out []sentencing.MatrixRow
	for rows.Next() {
		var m sentencing.MatrixRow
		if err := rows.Scan(&m.MatrixID, &m.GuidelineID, &m.OffenceID, &m.Culpability, &m.Harm,
			&m.StartingPointText, &m.CategoryRangeText); err != nil {
			return nil, NewInternalError(err.Error())
		}
		if seen[m.MatrixID] {
			continue
		}
		seen[m.MatrixID] = true
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, NewInternalError(err.Error())
	}
	return out, nil
}

func (s *SQLiteStore) SearchChunksText(ctx context.Context, query string, topK int, offenceID *string) ([]GuidelineChunk, error) {
	chunks, err := s.loadChunks(ctx, offenceID)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		rank := lexicalRank(chunks[i].chunk.ChunkText, query)
		chunks[i].chunk.Score = &rank
		chunks[i].tiebreak = trigramSimilarity(chunks[i].chunk.ChunkText, query)
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		if *chunks[i].chunk.Score != *chunks[j].chunk.Score {
			return *chunks[i].chunk.Score > *chunks[j].chunk.Score
		}
		return chunks[i].tiebreak > chunks[j].tiebreak
	})
	return takeChunks(chunks, topK), nil
}

func (s *SQLiteStore) SearchChunksHybrid(ctx context.Context, query string, embedding []float64, topK int, offenceID *string) ([]GuidelineChunk, error) {
	chunks, err := s.loadChunks(ctx, offenceID)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		vec := cosineSimilarity(chunks[i].embedding, embedding)
		if vec < 0 {
			vec = 0
		}
		text := lexicalRank(chunks[i].chunk.ChunkText, query)
		fused := vec*0.75 + text*0.25
		chunks[i].chunk.VectorScore = &vec
		chunks[i].chunk.TextScore = &text
		chunks[i].chunk.Score = &fused
	}
	sort.SliceStable(chunks, func(i, j int) bool {
		return *chunks[i].chunk.Score > *chunks[j].chunk.Score
	})
	return takeChunks(chunks, topK), nil
}

func (s *SQLiteStore) StoreCalculationAudit(ctx context.Context, offenceID string, requestPayload, resultPayload any) error {
	reqBlob, err := json.Marshal(requestPayload)
	if err != nil {
		return NewInternalError(fmt.Sprintf("encode audit request: %v", err))
	}
	resBlob, err := json.Marshal(resultPayload)
	if err != nil {
		return NewInternalError(fmt.Sprintf("encode audit result: %v", err))
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO calculation_audit
		(offence_id, request_payload, result_payload, created_at) VALUES (?, ?, ?, ?)`,
		offenceID, string(reqBlob), string(resBlob), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return NewInternalError(err.Error())
	}
	return nil
}

// AuditCount reports the number of audit rows, for operational checks.
func (s *SQLiteStore) AuditCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM calculation_audit`).Scan(&n); err != nil {
		return 0, NewInternalError(err.Error())
	}
	return n, nil
}

// --- scanning and scoring helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanOffence(row scannable) (*sentencing.OffenceRecord, error) {
	var o sentencing.OffenceRecord
	var violent, sexual, terrorist, listed, sch18a, sch19za, cta int
	err := row.Scan(&o.OffenceID, &o.CanonicalName, &o.ShortName, &o.OffenceCategory, &o.Provision,
		&o.GuidelineURL, &o.LegislationURL, &o.MaximumSentenceType, &o.MaximumSentenceAmount,
		&o.MinimumSentenceCode, &violent, &sexual, &terrorist, &listed, &sch18a, &sch19za, &cta)
	if err != nil {
		return nil, err
	}
	o.SpecifiedViolent = violent != 0
	o.SpecifiedSexual = sexual != 0
	o.SpecifiedTerrorist = terrorist != 0
	o.ListedOffence = listed != 0
	o.Schedule18AOffence = sch18a != 0
	o.Schedule19ZA = sch19za != 0
	o.CTANotification = cta != 0
	return &o, nil
}

type scoredChunk struct {
	chunk     GuidelineChunk
	embedding []float64
	tiebreak  float64
}

func (s *SQLiteStore) loadChunks(ctx context.Context, offenceID *string) ([]scoredChunk, error) {
	if offenceID != nil {
		if err := ValidateUUID(*offenceID); err != nil {
			return nil, err
		}
	}
	query := `
		SELECT gc.chunk_id, gc.guideline_id, gc.offence_id, gc.section_type, gc.section_heading,
		       gc.chunk_text, gc.source_url, gc.embedding
		FROM guideline_chunks gc`
	args := []any{}
	if offenceID != nil {
		query += `
		WHERE gc.offence_id = ?
		   OR gc.guideline_id IN (SELECT guideline_id FROM offence_guideline_links WHERE offence_id = ?)`
		args = append(args, *offenceID, *offenceID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, NewInternalError(err.Error())
	}
	defer rows.Close()

	var out []scoredChunk
	for rows.Next() {
		var c GuidelineChunk
		var offence, sectionType, sectionHeading, sourceURL sql.NullString
		var embeddingJSON string
		if err := rows.Scan(&c.ChunkID, &c.GuidelineID, &offence, &sectionType, &sectionHeading,
			&c.ChunkText, &sourceURL, &embeddingJSON); err != nil {
			return nil, NewInternalError(err.Error())
		}
		c.OffenceID = nullStringPtr(offence)
		c.SectionType = nullStringPtr(sectionType)
		c.SectionHeading = nullStringPtr(sectionHeading)
		c.SourceURL = nullStringPtr(sourceURL)
		var embedding []float64
		_ = json.Unmarshal([]byte(embeddingJSON), &embedding)
		out = append(out, scoredChunk{chunk: c, embedding: embedding})
	}
	if err := rows.Err(); err != nil {
		return nil, NewInternalError(err.Error())
	}
	return out, nil
}

func takeChunks(chunks []scoredChunk, topK int) []GuidelineChunk {
	if topK <= 0 {
		topK = 6
	}
	out := make([]GuidelineChunk, 0, topK)
	for _, c := range chunks {
		out = append(out, c.chunk)
		if len(out) == topK {
			break
		}
	}
	return out
}

// trigramSimilarity mirrors pg_trgm: pad the lowercased strings, take the
// three-gram sets, and score by intersection over union.
func trigramSimilarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	shared := 0
	for g := range ta {
		if tb[g] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]bool {
	out := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(s)) {
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			out[padded[i:i+3]] = true
		}
	}
	return out
}

// lexicalRank approximates ts_rank: the fraction of query tokens present in
// the text, dampened by text length the way cover-density ranking is.
func lexicalRank(text, query string) float64 {
	queryTokens := strings.Fields(strings.ToLower(query))
	if len(queryTokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, tok := range queryTokens {
		if strings.Contains(lower, tok) {
			matched++
		}
	}
	if matched == 0 {
		return 0
	}
	coverage := float64(matched) / float64(len(queryTokens))
	return coverage / (1 + math.Log(1+float64(len(lower))/1000))
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func nullStringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

var _ Store = (*SQLiteStore)(nil)
