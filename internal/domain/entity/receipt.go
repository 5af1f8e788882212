package entity

// ReceiptFile describes a file attached to a request thread
type ReceiptFile struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MimeType    string `json:"mime_type"`
	DownloadURL string `json:"download_url,omitempty"`
	// MessageID is set when the file must be fetched as a chat message resource
	MessageID string `json:"message_id,omitempty"`
}

// ArchivedFile is what the file store reports after a receipt upload
type ArchivedFile struct {
	FileID       string `json:"file_id"`
	Name         string `json:"name"`
	ViewLink     string `json:"view_link"`
	DownloadLink string `json:"download_link"`
	FolderID     string `json:"folder_id"`
}

// Downloadable reports whether the file carries enough to be fetched
func (f ReceiptFile) Downloadable() bool {
	return f.DownloadURL != "" || (f.MessageID != "" && f.ID != "")
}
