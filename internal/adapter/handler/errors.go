package handler

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/chopnow/storefront/internal/core/domain"
)

type errorClass struct {
	target error
	status int
	code   codes.Code
}

// errorClasses is checked in order; the first match wins.
var errorClasses = []errorClass{
	{domain.ErrUnauthenticated, http.StatusUnauthorized, codes.Unauthenticated},
	{domain.ErrActionNotPermitted, http.StatusForbidden, codes.PermissionDenied},
	{domain.ErrInvalidInput, http.StatusBadRequest, codes.InvalidArgument},
	{domain.ErrImmutableField, http.StatusBadRequest, codes.InvalidArgument},
	{domain.ErrOrderNotFound, http.StatusNotFound, codes.NotFound},
	{domain.ErrUserNotFound, http.StatusNotFound, codes.NotFound},
	{domain.ErrVendorNotFound, http.StatusNotFound, codes.NotFound},
	{domain.ErrMenuItemNotFound, http.StatusNotFound, codes.NotFound},
	{domain.ErrVendorProfileMissing, http.StatusNotFound, codes.FailedPrecondition},
	{domain.ErrTerminalState, http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrInvalidTransition, http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrVendorNotApproved, http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrMenuItemUnavailable, http.StatusConflict, codes.FailedPrecondition},
	{domain.ErrDuplicateRequest, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrAlreadyReviewed, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrVendorExists, http.StatusConflict, codes.AlreadyExists},
	{domain.ErrCollaboratorFailure, http.StatusBadGateway, codes.Unavailable},
}

// classify maps err onto a transport status and the message safe to show.
// Server-side failures never leak their cause.
func classify(err error) (int, codes.Code, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			if c.status >= http.StatusInternalServerError {
				return c.status, c.code, "upstream service unavailable"
			}
			return c.status, c.code, err.Error()
		}
	}
	return http.StatusInternalServerError, codes.Internal, "internal error"
}
