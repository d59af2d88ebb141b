package device

import (
	"net/http"

	"github.com/xiaozhi/managerctl/internal/common/apperrors"
	"github.com/xiaozhi/managerctl/internal/request"
)

var (
	// ErrInvalidParams is returned when an operation is called with bad arguments.
	// Nothing is sent to the server.
	ErrInvalidParams apperrors.Error = request.ErrValidation.New("invalid parameters").SetStatusCode(http.StatusBadRequest)

	// ErrUnsupportedFile is returned when a batch file is not an Excel workbook.
	ErrUnsupportedFile apperrors.Error = ErrInvalidParams.New("batch file must be an Excel workbook (xlsx or xls)")

	// ErrDecode is returned when a successful response cannot be decoded.
	ErrDecode apperrors.Error = request.ErrServer.New("unable to decode response")
)
