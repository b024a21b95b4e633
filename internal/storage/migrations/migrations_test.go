package migrations

import (
	"testing"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		want    []string
		wantErr bool
	}{
		{
			name: "comments and blank lines",
			script: `-- header comment
CREATE TABLE a (x Int64) ENGINE = MergeTree() ORDER BY x;

-- second
CREATE TABLE b (y String) ENGINE = MergeTree() ORDER BY y;
`,
			want: []string{
				"CREATE TABLE a (x Int64) ENGINE = MergeTree() ORDER BY x",
				"CREATE TABLE b (y String) ENGINE = MergeTree() ORDER BY y",
			},
		},
		{
			name:   "semicolon inside literal",
			script: "SELECT 'a;b'; SELECT 2",
			want:   []string{"SELECT 'a;b'", "SELECT 2"},
		},
		{
			name:   "escaped quote",
			script: "SELECT 'it''s -- not a comment';",
			want:   []string{"SELECT 'it''s -- not a comment'"},
		},
		{
			name:   "trailing comment without newline",
			script: "SELECT 1; -- done",
			want:   []string{"SELECT 1"},
		},
		{
			name:    "unterminated literal",
			script:  "SELECT 'oops;",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitStatements(tt.script)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d statements %q, want %q", len(got), got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("statement %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestEmbeddedClickhouseParses(t *testing.T) {
	files, err := sqlFiles(ClickhouseFS, "clickhouse")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range files {
		data, err := ClickhouseFS.ReadFile("clickhouse/" + name)
		if err != nil {
			t.Fatal(err)
		}
		stmts, err := splitStatements(string(data))
		if err != nil {
			t.Errorf("%s: %v", name, err)
		}
		if len(stmts) == 0 {
			t.Errorf("%s: no statements", name)
		}
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	tests := []struct {
		dsn     string
		want    string
		wantErr bool
	}{
		{"clickhouse://default@localhost:9000/quant", "quant", false},
		{"clickhouse://localhost:9000", "", true},
		{"clickhouse://localhost:9000/bad-name", "", true},
		{"clickhouse://localhost:9000/1quant", "", true},
	}
	for _, tt := range tests {
		got, err := databaseFromDSN(tt.dsn)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.dsn, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestEmbeddedFilesSorted(t *testing.T) {
	for _, dir := range []string{"postgres", "clickhouse"} {
		fsys := PostgresFS
		if dir == "clickhouse" {
			fsys = ClickhouseFS
		}
		files, err := sqlFiles(fsys, dir)
		if err != nil {
			t.Fatalf("%s: %v", dir, err)
		}
		if len(files) == 0 {
			t.Fatalf("%s: no embedded migrations", dir)
		}
		for i := 1; i < len(files); i++ {
			if files[i-1] >= files[i] {
				t.Errorf("%s: files not sorted: %v", dir, files)
			}
		}
	}
}
