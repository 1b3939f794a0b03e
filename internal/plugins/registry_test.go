package plugins

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	gmailapi "google.golang.org/api/gmail/v1"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/smsledger/pkg/config"
	"github.com/ArionMiles/smsledger/pkg/spool"
)

func TestDefault_Lists(t *testing.T) {
	r := Default()

	var readers []string
	for _, p := range r.ListReaders() {
		readers = append(readers, p.Name())
	}
	wantReaders := []string{"gmail", "mbox", "spool"}
	if len(readers) != len(wantReaders) {
		t.Fatalf("readers = %v, want %v", readers, wantReaders)
	}
	for i := range wantReaders {
		if readers[i] != wantReaders[i] {
			t.Errorf("readers[%d] = %q, want %q", i, readers[i], wantReaders[i])
		}
	}

	var writers []string
	for _, p := range r.ListWriters() {
		writers = append(writers, p.Name())
	}
	if len(writers) != 3 || writers[0] != "csv" || writers[1] != "json" || writers[2] != "sheets" {
		t.Errorf("writers = %v, want [csv json sheets]", writers)
	}
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	if err := r.RegisterReader(&SpoolReader{}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := r.RegisterReader(&SpoolReader{}); err == nil {
		t.Error("duplicate reader registration succeeded")
	}
	if err := r.RegisterWriter(&CSVWriter{}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if err := r.RegisterWriter(&CSVWriter{}); err == nil {
		t.Error("duplicate writer registration succeeded")
	}
}

func TestRegistry_Scopes(t *testing.T) {
	r := Default()

	tests := []struct {
		name    string
		reader  string
		writer  string
		want    []string
		wantErr bool
	}{
		{name: "local only", reader: "spool", want: nil},
		{name: "gmail", reader: "gmail", want: []string{gmailapi.GmailModifyScope, gmailapi.GmailReadonlyScope}},
		{
			name:   "gmail and sheets",
			reader: "gmail", writer: "sheets",
			want: []string{gmailapi.GmailModifyScope, gmailapi.GmailReadonlyScope, sheetsapi.SpreadsheetsScope},
		},
		{name: "unknown reader", reader: "sms-gateway", wantErr: true},
		{name: "unknown writer", reader: "spool", writer: "excel", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Scopes(tc.reader, tc.writer)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Scopes() error = %v, wantErr %v", err, tc.wantErr)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("Scopes() = %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("Scopes()[%d] = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestRegistry_CreateLocalPlugins(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.MboxPath = filepath.Join(dir, "alerts.mbox")
	cfg.MirrorPath = filepath.Join(dir, "mirror.csv")

	sp, err := spool.Open(filepath.Join(dir, "spool.json"), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	deps := Deps{Config: &cfg, Spool: sp}
	r := Default()

	for _, name := range []string{"spool", "mbox"} {
		if _, err := r.CreateReader(ctx, name, deps, nil); err != nil {
			t.Errorf("CreateReader(%q) error = %v", name, err)
		}
	}
	if _, err := r.CreateWriter(ctx, "csv", deps, nil); err != nil {
		t.Errorf("CreateWriter(csv) error = %v", err)
	}

	cfg.MirrorPath = filepath.Join(dir, "mirror.json")
	if _, err := r.CreateWriter(ctx, "json", deps, nil); err != nil {
		t.Errorf("CreateWriter(json) error = %v", err)
	}
}

func TestRegistry_GooglePluginsNeedClient(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	deps := Deps{Config: &cfg}
	r := Default()

	if _, err := r.CreateReader(ctx, "gmail", deps, nil); !errors.Is(err, errNoHTTPClient) {
		t.Errorf("gmail without client: got %v, want errNoHTTPClient", err)
	}
	if _, err := r.CreateWriter(ctx, "sheets", deps, nil); !errors.Is(err, errNoHTTPClient) {
		t.Errorf("sheets without client: got %v, want errNoHTTPClient", err)
	}
	if _, err := r.CreateReader(ctx, "spool", deps, nil); err == nil {
		t.Error("spool reader without a spool succeeded")
	}
}
