package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mcq-contest-service/internal/docstore"
)

// DocStore implements docstore.Store on a single JSONB table:
//
//	documents(collection TEXT, id TEXT, data JSONB, PRIMARY KEY (collection, id))
//
// Filters and ordering compile to JSONB expressions; batches run inside one
// transaction so multi-document writes commit atomically.
type DocStore struct {
	pool *pgxpool.Pool
}

func NewDocStore(pool *pgxpool.Pool) *DocStore {
	return &DocStore{pool: pool}
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func (s *DocStore) Get(ctx context.Context, collection, id string, out any) error {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&raw)
	if err == pgx.ErrNoRows {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (s *DocStore) Set(ctx context.Context, collection, id string, doc any) error {
	return setDoc(ctx, s.pool, collection, id, doc)
}

func (s *DocStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	return updateDoc(ctx, s.pool, collection, id, fields)
}

func (s *DocStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
	return err
}

func (s *DocStore) Query(ctx context.Context, collection string, q docstore.Query, out any) error {
	return s.query(ctx, `collection = $1`, collection, q, out)
}

func (s *DocStore) QueryGroup(ctx context.Context, leaf string, q docstore.Query, out any) error {
	return s.query(ctx, `(collection = $1 OR collection LIKE '%/' || $1)`, leaf, q, out)
}

func (s *DocStore) query(ctx context.Context, colPredicate, colArg string, q docstore.Query, out any) error {
	var sb strings.Builder
	args := []interface{}{colArg}
	sb.WriteString(`SELECT data FROM documents WHERE `)
	sb.WriteString(colPredicate)

	for _, f := range q.Filters {
		pred, arg, err := compileFilter(f, len(args)+1)
		if err != nil {
			return err
		}
		sb.WriteString(" AND ")
		sb.WriteString(pred)
		args = append(args, arg)
	}

	if len(q.Orders) > 0 {
		keys := make([]string, 0, len(q.Orders))
		for _, ord := range q.Orders {
			if err := checkField(ord.Field); err != nil {
				return err
			}
			dir := "ASC"
			if ord.Desc {
				dir = "DESC"
			}
			// jsonb comparison orders numbers numerically and strings lexically
			keys = append(keys, fmt.Sprintf("data->'%s' %s", ord.Field, dir))
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(keys, ", "))
	} else {
		sb.WriteString(" ORDER BY collection, id")
	}

	if q.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}
	if q.Offset > 0 {
		sb.WriteString(fmt.Sprintf(" OFFSET %d", q.Offset))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var raws [][]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		raws = append(raws, raw)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return docstore.DecodeList(raws, out)
}

// RunBatch stages the writes and replays them inside a transaction.
func (s *DocStore) RunBatch(ctx context.Context, fn func(b docstore.Batch) error) error {
	var buf docstore.WriteBuffer
	if err := fn(&buf); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, op := range buf.Ops {
		switch op.Kind {
		case docstore.BatchSet:
			err = setDoc(ctx, tx, op.Collection, op.ID, op.Doc)
		case docstore.BatchUpdate:
			err = updateDoc(ctx, tx, op.Collection, op.ID, op.Fields)
		case docstore.BatchDelete:
			_, err = tx.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, op.Collection, op.ID)
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func setDoc(ctx context.Context, db execer, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data`, collection, id, string(raw))
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

func updateDoc(ctx context.Context, db execer, collection, id string, fields map[string]any) error {
	merge := make(map[string]any)
	expr := "data"
	for key, val := range fields {
		if err := checkField(key); err != nil {
			return err
		}
		if val == docstore.DeleteField {
			expr = fmt.Sprintf("(%s - '%s')", expr, key)
			continue
		}
		merge[key] = val
	}

	args := []interface{}{collection, id}
	if len(merge) > 0 {
		raw, err := json.Marshal(merge)
		if err != nil {
			return err
		}
		expr = fmt.Sprintf("%s || $3::jsonb", expr)
		args = append(args, string(raw))
	}

	tag, err := db.Exec(ctx,
		fmt.Sprintf(`UPDATE documents SET data = %s WHERE collection=$1 AND id=$2`, expr), args...)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func compileFilter(f docstore.Filter, argPos int) (string, interface{}, error) {
	if err := checkField(f.Field); err != nil {
		return "", nil, err
	}

	if f.Op == docstore.OpIn {
		switch vals := f.Value.(type) {
		case []string:
			return fmt.Sprintf("data->>'%s' = ANY($%d)", f.Field, argPos), vals, nil
		case []int:
			nums := make([]float64, len(vals))
			for i, v := range vals {
				nums[i] = float64(v)
			}
			return fmt.Sprintf("(data->>'%s')::numeric = ANY($%d)", f.Field, argPos), nums, nil
		case []int64:
			nums := make([]float64, len(vals))
			for i, v := range vals {
				nums[i] = float64(v)
			}
			return fmt.Sprintf("(data->>'%s')::numeric = ANY($%d)", f.Field, argPos), nums, nil
		default:
			return "", nil, fmt.Errorf("unsupported in-filter value %T", f.Value)
		}
	}

	var sqlOp string
	switch f.Op {
	case docstore.OpEq:
		sqlOp = "="
	case docstore.OpLt:
		sqlOp = "<"
	case docstore.OpLte:
		sqlOp = "<="
	case docstore.OpGt:
		sqlOp = ">"
	case docstore.OpGte:
		sqlOp = ">="
	default:
		return "", nil, fmt.Errorf("unsupported filter op %q", f.Op)
	}

	switch v := f.Value.(type) {
	case bool:
		return fmt.Sprintf("(data->>'%s')::boolean %s $%d", f.Field, sqlOp, argPos), v, nil
	case int:
		return fmt.Sprintf("(data->>'%s')::numeric %s $%d", f.Field, sqlOp, argPos), float64(v), nil
	case int64:
		return fmt.Sprintf("(data->>'%s')::numeric %s $%d", f.Field, sqlOp, argPos), float64(v), nil
	case float64:
		return fmt.Sprintf("(data->>'%s')::numeric %s $%d", f.Field, sqlOp, argPos), v, nil
	default:
		// named string types (ContestStatus, RejoinStatus) land here
		return fmt.Sprintf("data->>'%s' %s $%d", f.Field, sqlOp, argPos), fmt.Sprintf("%v", f.Value), nil
	}
}

func checkField(field string) error {
	for _, r := range field {
		ok := r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			return fmt.Errorf("invalid field name %q", field)
		}
	}
	if field == "" {
		return fmt.Errorf("empty field name")
	}
	return nil
}
