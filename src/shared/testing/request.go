package testing

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
	"github.com/onsi/gomega"
)

// UploadRequestFactory builds the multipart form request the separation
// endpoint accepts: one file part plus string form fields.
type UploadRequestFactory struct {
	Target     string
	FileName   string
	FileBytes  []byte
	FormFields map[string]string
}

func (u UploadRequestFactory) MakeFake() *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if u.FileBytes != nil {
		filePart, err := writer.CreateFormFile("file", u.FileName)
		gomega.ExpectWithOffset(1, err).NotTo(gomega.HaveOccurred())

		_, err = filePart.Write(u.FileBytes)
		gomega.ExpectWithOffset(1, err).NotTo(gomega.HaveOccurred())
	}

	for fieldName, fieldValue := range u.FormFields {
		err := writer.WriteField(fieldName, fieldValue)
		gomega.ExpectWithOffset(1, err).NotTo(gomega.HaveOccurred())
	}

	err := writer.Close()
	gomega.ExpectWithOffset(1, err).NotTo(gomega.HaveOccurred())

	request := httptest.NewRequest("POST", u.Target, body)
	request.Header.Set(echo.HeaderContentType, writer.FormDataContentType())

	return request
}
