package errmsg

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/andymarkow/taskmart/internal/domain/accounts"
	"github.com/andymarkow/taskmart/internal/errs"
	"github.com/andymarkow/taskmart/internal/storage"
	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		code    int
		message string
	}{
		{
			name:    "invalid input",
			err:     fmt.Errorf("engine: %w", errs.Invalidf("bad reward: %s", "x")),
			code:    http.StatusBadRequest,
			message: "bad reward: x",
		},
		{
			name:    "not found",
			err:     fmt.Errorf("store.GetTask: %w", storage.ErrTaskNotFound),
			code:    http.StatusNotFound,
			message: "task not found",
		},
		{
			name:    "conflict",
			err:     storage.ErrDuplicateSubmission,
			code:    http.StatusConflict,
			message: "submission already pending or approved",
		},
		{
			name:    "insufficient funds",
			err:     fmt.Errorf("store.CreateWithdrawal: %w", accounts.ErrBalanceNotEnough),
			code:    http.StatusPaymentRequired,
			message: "account balance not enough",
		},
		{
			name:    "no task",
			err:     storage.ErrNoTaskAvailable,
			code:    http.StatusNotFound,
			message: "no task available",
		},
		{
			name:    "transition",
			err:     errs.New(errs.ErrInvalidTransition, "cannot pay"),
			code:    http.StatusUnprocessableEntity,
			message: "cannot pay",
		},
		{
			name:    "unclassified",
			err:     errors.New("connection refused"),
			code:    http.StatusInternalServerError,
			message: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := FromError(tt.err)

			assert.Equal(t, tt.code, httpErr.Code)
			assert.Equal(t, tt.message, httpErr.Error())
		})
	}
}
