package utils

import (
	"fmt"
	"io"
	"net/http"
)

// maxUploadMemory is the part of a multipart upload kept in memory; the rest
// goes to temporary files.
const maxUploadMemory = 64 << 20

type MultipartResult struct {
	File     []byte
	FileName string
	// Values holds the first value of every non-file form field
	Values map[string]string
}

// ReadMultiPartForm reads the file uploaded under fileKey along with the form
// values. A missing file is not an error; File is nil then.
func ReadMultiPartForm(r *http.Request, fileKey string) (MultipartResult, error) {
	result := MultipartResult{Values: make(map[string]string)}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return result, fmt.Errorf("failed to parse multipart form: %w", err)
	}

	for key, value := range r.MultipartForm.Value {
		if len(value) > 0 {
			result.Values[key] = value[0]
		}
	}

	headers := r.MultipartForm.File[fileKey]
	if len(headers) == 0 {
		return result, nil
	}

	file, err := headers[0].Open()
	if err != nil {
		return result, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return result, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	result.File = content
	result.FileName = headers[0].Filename

	return result, nil
}
