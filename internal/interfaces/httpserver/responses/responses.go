package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/convohq/chat-api/internal/utils/platformerrors"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	Details       string `json:"details,omitempty"`
	ErrorInstance error  `json:"-"`
	RequestID     string `json:"request_id,omitempty"`
}

// HandleError handles domain errors and returns appropriate HTTP responses.
// The message parameter is used directly as the error message in the
// response; the status code is determined from the error type.
func HandleError(reqCtx *gin.Context, err error, message string) {
	var domainErr *platformerrors.PlatformError
	if errors.As(err, &domainErr) {
		statusCode := platformerrors.ErrorTypeToHTTPStatus(domainErr.GetErrorType())

		errResp := ErrorResponse{
			Error:         message,
			Details:       domainErr.Message,
			ErrorInstance: domainErr,
			RequestID:     domainErr.RequestID,
		}
		reqCtx.AbortWithStatusJSON(statusCode, errResp)
		return
	}

	reqCtx.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
		Error:         message,
		ErrorInstance: err,
	})
}

// HandleErrorWithStatus handles domain errors with a custom status code.
func HandleErrorWithStatus(reqCtx *gin.Context, statusCode int, err error, message string) {
	errResp := ErrorResponse{
		Error:         message,
		ErrorInstance: err,
	}
	var domainErr *platformerrors.PlatformError
	if errors.As(err, &domainErr) {
		errResp.Details = domainErr.Message
		errResp.RequestID = domainErr.RequestID
	}
	reqCtx.AbortWithStatusJSON(statusCode, errResp)
}

// HandleNewError creates a new typed error at the route layer and handles it.
func HandleNewError(reqCtx *gin.Context, errorType platformerrors.ErrorType, message string) {
	ctx := reqCtx.Request.Context()
	err := platformerrors.NewError(ctx, platformerrors.LayerRoute, errorType, message, nil, "")

	statusCode := platformerrors.ErrorTypeToHTTPStatus(err.GetErrorType())
	reqCtx.AbortWithStatusJSON(statusCode, ErrorResponse{
		Error:         message,
		ErrorInstance: err,
		RequestID:     err.RequestID,
	})
}

type GeneralResponse[T any] struct {
	Status string `json:"status"`
	Result T      `json:"result"`
}

// OK writes the standard success envelope.
func OK[T any](reqCtx *gin.Context, result T) {
	reqCtx.JSON(http.StatusOK, GeneralResponse[T]{Status: "ok", Result: result})
}
