package google

import (
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Config holds service account credentials. CredentialsJSON wins over
// CredentialsFile; with neither, application default credentials are used.
type Config struct {
	CredentialsJSON string
	CredentialsFile string
}

// Scopes requested for the ledger and the archive
var Scopes = []string{
	sheets.SpreadsheetsScope,
	drive.DriveScope,
}

// ClientOptions builds the API client options for cfg followed by extra
func ClientOptions(cfg Config, extra ...option.ClientOption) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(Scopes...)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return append(opts, extra...)
}
