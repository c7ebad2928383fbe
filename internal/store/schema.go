package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/c5t/c5t/internal/types"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS project (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	tags TEXT NOT NULL DEFAULT '[]',           -- JSON array
	external_refs TEXT NOT NULL DEFAULT '[]',  -- JSON array
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS repo (
	id TEXT PRIMARY KEY,
	remote TEXT NOT NULL,
	path TEXT,
	tags TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS task_list (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL REFERENCES project(id),
	title TEXT NOT NULL,
	description TEXT,
	notes TEXT,
	tags TEXT NOT NULL DEFAULT '[]',
	external_refs TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'active',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	archived_at TEXT
);

CREATE TABLE IF NOT EXISTS task (
	id TEXT PRIMARY KEY,
	list_id TEXT NOT NULL REFERENCES task_list(id),
	parent_id TEXT REFERENCES task(id),
	title TEXT NOT NULL,
	description TEXT,
	status TEXT NOT NULL,
	priority INTEGER,
	tags TEXT NOT NULL DEFAULT '[]',
	external_refs TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	started_at TEXT,
	completed_at TEXT,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS note (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	parent_id TEXT REFERENCES note(id),
	idx INTEGER,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS skill (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

-- Join tables
CREATE TABLE IF NOT EXISTS project_repo (
	project_id TEXT NOT NULL REFERENCES project(id),
	repo_id TEXT NOT NULL REFERENCES repo(id),
	PRIMARY KEY (project_id, repo_id)
);

CREATE TABLE IF NOT EXISTS project_note (
	project_id TEXT NOT NULL REFERENCES project(id),
	note_id TEXT NOT NULL REFERENCES note(id),
	PRIMARY KEY (project_id, note_id)
);

CREATE TABLE IF NOT EXISTS task_list_repo (
	task_list_id TEXT NOT NULL REFERENCES task_list(id),
	repo_id TEXT NOT NULL REFERENCES repo(id),
	PRIMARY KEY (task_list_id, repo_id)
);

CREATE TABLE IF NOT EXISTS note_repo (
	note_id TEXT NOT NULL REFERENCES note(id),
	repo_id TEXT NOT NULL REFERENCES repo(id),
	PRIMARY KEY (note_id, repo_id)
);

CREATE TABLE IF NOT EXISTS project_skill (
	project_id TEXT NOT NULL REFERENCES project(id),
	skill_id TEXT NOT NULL REFERENCES skill(id),
	PRIMARY KEY (project_id, skill_id)
);

CREATE INDEX IF NOT EXISTS idx_task_list_project ON task_list(project_id);
CREATE INDEX IF NOT EXISTS idx_task_list_id ON task(list_id);
CREATE INDEX IF NOT EXISTS idx_task_parent ON task(parent_id);
CREATE INDEX IF NOT EXISTS idx_note_parent ON note(parent_id);
`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// table maps one entity kind onto its SQL table. Column order in columns,
// args and scan must match.
type table struct {
	name    string
	columns []string
	args    func(e types.Entity) ([]any, error)
	scan    func(row rowScanner) (types.Entity, error)
}

var tables = map[types.Kind]table{
	types.KindProject: {
		name:    "project",
		columns: []string{"id", "title", "description", "tags", "external_refs", "created_at", "updated_at"},
		args: func(e types.Entity) ([]any, error) {
			p := e.(*types.Project)
			tags, refs, err := encodeLists(p.Tags, p.ExternalRefs)
			if err != nil {
				return nil, err
			}
			return []any{p.ID, p.Title, nullString(p.Description), tags, refs, p.CreatedAt, p.UpdatedAt}, nil
		},
		scan: func(row rowScanner) (types.Entity, error) {
			var p types.Project
			var desc sql.NullString
			var tags, refs string
			if err := row.Scan(&p.ID, &p.Title, &desc, &tags, &refs, &p.CreatedAt, &p.UpdatedAt); err != nil {
				return nil, err
			}
			p.Description = stringPtr(desc)
			if err := decodeLists(tags, &p.Tags, refs, &p.ExternalRefs); err != nil {
				return nil, err
			}
			return &p, nil
		},
	},
	types.KindRepo: {
		name:    "repo",
		columns: []string{"id", "remote", "path", "tags", "created_at", "updated_at"},
		args: func(e types.Entity) ([]any, error) {
			r := e.(*types.Repo)
			tags, err := json.Marshal(emptyIfNil(r.Tags))
			if err != nil {
				return nil, err
			}
			return []any{r.ID, r.Remote, nullString(r.Path), string(tags), r.CreatedAt, r.UpdatedAt}, nil
		},
		scan: func(row rowScanner) (types.Entity, error) {
			var r types.Repo
			var path sql.NullString
			var tags string
			if err := row.Scan(&r.ID, &r.Remote, &path, &tags, &r.CreatedAt, &r.UpdatedAt); err != nil {
				return nil, err
			}
			r.Path = stringPtr(path)
			if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
				return nil, fmt.Errorf("failed to parse tags: %w", err)
			}
			return &r, nil
		},
	},
	types.KindTaskList: {
		name: "task_list",
		columns: []string{"id", "project_id", "title", "description", "notes", "tags", "external_refs",
			"status", "created_at", "updated_at", "archived_at"},
		args: func(e types.Entity) ([]any, error) {
			l := e.(*types.TaskList)
			tags, refs, err := encodeLists(l.Tags, l.ExternalRefs)
			if err != nil {
				return nil, err
			}
			return []any{l.ID, l.ProjectID, l.Title, nullString(l.Description), nullString(l.Notes), tags, refs,
				string(l.Status), l.CreatedAt, l.UpdatedAt, nullString(l.ArchivedAt)}, nil
		},
		scan: func(row rowScanner) (types.Entity, error) {
			var l types.TaskList
			var desc, notes, archived sql.NullString
			var tags, refs, status string
			if err := row.Scan(&l.ID, &l.ProjectID, &l.Title, &desc, &notes, &tags, &refs,
				&status, &l.CreatedAt, &l.UpdatedAt, &archived); err != nil {
				return nil, err
			}
			l.Description = stringPtr(desc)
			l.Notes = stringPtr(notes)
			l.ArchivedAt = stringPtr(archived)
			l.Status = types.TaskListStatus(status)
			if err := decodeLists(tags, &l.Tags, refs, &l.ExternalRefs); err != nil {
				return nil, err
			}
			return &l, nil
		},
	},
	types.KindTask: {
		name: "task",
		columns: []string{"id", "list_id", "parent_id", "title", "description", "status", "priority",
			"tags", "external_refs", "created_at", "started_at", "completed_at", "updated_at"},
		args: func(e types.Entity) ([]any, error) {
			t := e.(*types.Task)
			tags, refs, err := encodeLists(t.Tags, t.ExternalRefs)
			if err != nil {
				return nil, err
			}
			return []any{t.ID, t.ListID, nullString(t.ParentID), t.Title, nullString(t.Description),
				string(t.Status), nullInt(t.Priority), tags, refs, t.CreatedAt,
				nullString(t.StartedAt), nullString(t.CompletedAt), t.UpdatedAt}, nil
		},
		scan: func(row rowScanner) (types.Entity, error) {
			var t types.Task
			var parent, desc, started, completed sql.NullString
			var priority sql.NullInt64
			var tags, refs, status string
			if err := row.Scan(&t.ID, &t.ListID, &parent, &t.Title, &desc, &status, &priority,
				&tags, &refs, &t.CreatedAt, &started, &completed, &t.UpdatedAt); err != nil {
				return nil, err
			}
			t.ParentID = stringPtr(parent)
			t.Description = stringPtr(desc)
			t.StartedAt = stringPtr(started)
			t.CompletedAt = stringPtr(completed)
			t.Priority = intPtr(priority)
			t.Status = types.TaskStatus(status)
			if err := decodeLists(tags, &t.Tags, refs, &t.ExternalRefs); err != nil {
				return nil, err
			}
			return &t, nil
		},
	},
	types.KindNote: {
		name:    "note",
		columns: []string{"id", "title", "content", "tags", "parent_id", "idx", "created_at", "updated_at"},
		args: func(e types.Entity) ([]any, error) {
			n := e.(*types.Note)
			tags, err := json.Marshal(emptyIfNil(n.Tags))
			if err != nil {
				return nil, err
			}
			return []any{n.ID, n.Title, n.Content, string(tags), nullString(n.ParentID), nullInt(n.Idx),
				n.CreatedAt, n.UpdatedAt}, nil
		},
		scan: func(row rowScanner) (types.Entity, error) {
			var n types.Note
			var parent sql.NullString
			var idx sql.NullInt64
			var tags string
			if err := row.Scan(&n.ID, &n.Title, &n.Content, &tags, &parent, &idx, &n.CreatedAt, &n.UpdatedAt); err != nil {
				return nil, err
			}
			n.ParentID = stringPtr(parent)
			n.Idx = intPtr(idx)
			if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
				return nil, fmt.Errorf("failed to parse tags: %w", err)
			}
			return &n, nil
		},
	},
	types.KindSkill: {
		name:    "skill",
		columns: []string{"id", "name", "description", "content", "tags", "created_at", "updated_at"},
		args: func(e types.Entity) ([]any, error) {
			s := e.(*types.Skill)
			tags, err := json.Marshal(emptyIfNil(s.Tags))
			if err != nil {
				return nil, err
			}
			return []any{s.ID, s.Name, s.Description, s.Content, string(tags), s.CreatedAt, s.UpdatedAt}, nil
		},
		scan: func(row rowScanner) (types.Entity, error) {
			var s types.Skill
			var tags string
			if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Content, &tags, &s.CreatedAt, &s.UpdatedAt); err != nil {
				return nil, err
			}
			if err := json.Unmarshal([]byte(tags), &s.Tags); err != nil {
				return nil, fmt.Errorf("failed to parse tags: %w", err)
			}
			return &s, nil
		},
	},
}

func encodeLists(tags, refs []string) (string, string, error) {
	t, err := json.Marshal(emptyIfNil(tags))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	r, err := json.Marshal(emptyIfNil(refs))
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal external_refs: %w", err)
	}
	return string(t), string(r), nil
}

func decodeLists(tags string, tagsOut *[]string, refs string, refsOut *[]string) error {
	if err := json.Unmarshal([]byte(tags), tagsOut); err != nil {
		return fmt.Errorf("failed to parse tags: %w", err)
	}
	if err := json.Unmarshal([]byte(refs), refsOut); err != nil {
		return fmt.Errorf("failed to parse external_refs: %w", err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(i *int) any {
	if i == nil {
		return nil
	}
	return int64(*i)
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}
