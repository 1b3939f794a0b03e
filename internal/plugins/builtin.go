package plugins

import (
	"context"
	"errors"
	"log/slog"

	gmailapi "google.golang.org/api/gmail/v1"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/ArionMiles/smsledger/pkg/api"
	gmailreader "github.com/ArionMiles/smsledger/pkg/reader/gmail"
	mboxreader "github.com/ArionMiles/smsledger/pkg/reader/mbox"
	"github.com/ArionMiles/smsledger/pkg/spool"
	csvwriter "github.com/ArionMiles/smsledger/pkg/writer/csv"
	jsonwriter "github.com/ArionMiles/smsledger/pkg/writer/json"
	sheetswriter "github.com/ArionMiles/smsledger/pkg/writer/sheets"
)

var errNoHTTPClient = errors.New("an authorized Google client is required (run 'smsledger setup')")

// SpoolReader replays the offline spool.
type SpoolReader struct{}

func (p *SpoolReader) Name() string             { return "spool" }
func (p *SpoolReader) Description() string      { return "Replay messages buffered in the offline spool" }
func (p *SpoolReader) RequiredScopes() []string { return nil }

func (p *SpoolReader) NewReader(_ context.Context, deps Deps, _ *slog.Logger) (api.Reader, error) {
	if deps.Spool == nil {
		return nil, errors.New("spool reader needs an open spool")
	}
	return &spool.Reader{Spool: deps.Spool, PollInterval: deps.Config.PollInterval}, nil
}

// MboxReader reads an mbox export of bank alert mail.
type MboxReader struct{}

func (p *MboxReader) Name() string             { return "mbox" }
func (p *MboxReader) Description() string      { return "Read bank alerts from an mbox export" }
func (p *MboxReader) RequiredScopes() []string { return nil }

func (p *MboxReader) NewReader(_ context.Context, deps Deps, logger *slog.Logger) (api.Reader, error) {
	return mboxreader.New(mboxreader.Config{Path: deps.Config.MboxPath}, logger)
}

// GmailReader polls Gmail for bank alert mail.
type GmailReader struct{}

func (p *GmailReader) Name() string        { return "gmail" }
func (p *GmailReader) Description() string { return "Read bank alerts from Gmail, marking them read once stored" }

func (p *GmailReader) RequiredScopes() []string {
	return []string{gmailapi.GmailReadonlyScope, gmailapi.GmailModifyScope}
}

func (p *GmailReader) NewReader(_ context.Context, deps Deps, logger *slog.Logger) (api.Reader, error) {
	if deps.HTTPClient == nil {
		return nil, errNoHTTPClient
	}
	return gmailreader.New(deps.HTTPClient, gmailreader.Config{
		Query:    deps.Config.GmailQuery,
		Interval: deps.Config.PollInterval,
	}, logger)
}

// CSVWriter mirrors stored transactions to a CSV file.
type CSVWriter struct{}

func (p *CSVWriter) Name() string             { return "csv" }
func (p *CSVWriter) Description() string      { return "Mirror stored transactions to a CSV file" }
func (p *CSVWriter) RequiredScopes() []string { return nil }

func (p *CSVWriter) NewWriter(_ context.Context, deps Deps, logger *slog.Logger) (api.Writer, error) {
	if deps.Config.MirrorPath == "" {
		return nil, errors.New("MIRROR_PATH is required")
	}
	return csvwriter.New(csvwriter.Config{FilePath: deps.Config.MirrorPath}, logger)
}

// JSONWriter mirrors stored transactions to a JSON file.
type JSONWriter struct{}

func (p *JSONWriter) Name() string             { return "json" }
func (p *JSONWriter) Description() string      { return "Mirror stored transactions to a JSON file" }
func (p *JSONWriter) RequiredScopes() []string { return nil }

func (p *JSONWriter) NewWriter(_ context.Context, deps Deps, logger *slog.Logger) (api.Writer, error) {
	if deps.Config.MirrorPath == "" {
		return nil, errors.New("MIRROR_PATH is required")
	}
	return jsonwriter.New(jsonwriter.Config{FilePath: deps.Config.MirrorPath}, logger)
}

// SheetsWriter mirrors stored transactions to Google Sheets.
type SheetsWriter struct{}

func (p *SheetsWriter) Name() string             { return "sheets" }
func (p *SheetsWriter) Description() string      { return "Mirror stored transactions to a Google Sheet" }
func (p *SheetsWriter) RequiredScopes() []string { return []string{sheetsapi.SpreadsheetsScope} }

func (p *SheetsWriter) NewWriter(ctx context.Context, deps Deps, logger *slog.Logger) (api.Writer, error) {
	if deps.HTTPClient == nil {
		return nil, errNoHTTPClient
	}
	return sheetswriter.New(ctx, deps.HTTPClient, sheetswriter.Config{
		SheetTitle: deps.Config.GSheetsTitle,
		SheetID:    deps.Config.GSheetsID,
		SheetName:  deps.Config.GSheetsName,
	}, logger)
}
