package excel

// CodecConfig holds configuration for reading and writing table files
type CodecConfig struct {
	SheetName string `json:"sheet_name"` // xlsx sheet to read and write; first sheet if absent
	TrimCells bool   `json:"trim_cells"`
}

// DefaultCodecConfig returns sensible defaults for table files
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{
		SheetName: "Sheet1",
		TrimCells: true,
	}
}
