package types

// ClassifyInput is one image handed to the classification pipeline.
type ClassifyInput struct {
	// Image holds the encoded image bytes (jpeg, png, gif, bmp, tiff, webp).
	Image []byte
	// MimeType is an optional hint used in error messages.
	MimeType string
	// Name is the optional original file name.
	Name string
}
