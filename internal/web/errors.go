// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FormDeck Contributors

package web

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/formdeck/formdeck/internal/auth"
	"github.com/formdeck/formdeck/pkg/errutil"
)

const internalErrorMessage = "internal server error"

// statusByCode lists the codes whose messages are safe to show clients.
var statusByCode = map[string]int{
	auth.CodeInvalidInput:        http.StatusBadRequest,
	auth.CodeEmailTaken:          http.StatusConflict,
	auth.CodeInvalidCredentials:  http.StatusUnauthorized,
	auth.CodeTokenMissing:        http.StatusUnauthorized,
	auth.CodeAccountLocked:       http.StatusLocked,
	auth.CodeTokenInvalid:        http.StatusForbidden,
	auth.CodeForbidden:           http.StatusForbidden,
	auth.CodeInvalidOneTimeToken: http.StatusBadRequest,
}

// StatusFor returns the HTTP status for err and whether its message may be
// shown to the client.
func StatusFor(err error) (int, bool) {
	status, ok := statusByCode[errutil.Code(err)]
	if !ok {
		return http.StatusInternalServerError, false
	}
	return status, true
}

// respondError aborts the request with the status and message for err.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status, public := StatusFor(err)
	if !public {
		errutil.LogErrorContext(c.Request.Context(), logger, "request failed", err)
		c.AbortWithStatusJSON(status, gin.H{"error": internalErrorMessage})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(msg string) error {
	return oops.Code(auth.CodeInvalidInput).Errorf("%s", msg)
}
