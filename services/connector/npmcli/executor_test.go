// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package npmcli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/RegistryDeck/pkg/procman"
	"github.com/AleutianAI/RegistryDeck/services/connector/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func successMock(stdout string) *procman.MockProcessManager {
	return &procman.MockProcessManager{
		CaptureRunFunc: func(_ context.Context, _ string, _ ...string) (procman.Capture, error) {
			return procman.Capture{Stdout: []byte(stdout)}, nil
		},
	}
}

func TestRun_Success(t *testing.T) {
	mock := successMock("org set @acme bob developer\n")
	exec := NewExecutor(mock, "npm", nil)

	inv := Resolve(store.TypeOrgAddUser, map[string]string{"org": "@acme", "user": "bob", "role": "developer"})
	res := exec.Run(context.Background(), inv, "")

	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "org set @acme bob developer", res.Stdout, "trailing whitespace trimmed")
	assert.False(t, res.RequiresOtp)
	assert.False(t, res.AuthFailure)

	calls := mock.GetCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "npm", calls[0].Name)
	assert.Equal(t, []string{"org", "set", "@acme", "bob", "developer"}, calls[0].Args)
}

func TestRun_AppendsOtpFlagExactlyWhenProvided(t *testing.T) {
	mock := successMock("ok")
	exec := NewExecutor(mock, "npm", nil)
	inv := Resolve(store.TypeTeamCreate, map[string]string{"team": "@acme:publishers"})

	exec.Run(context.Background(), inv, "123456")
	exec.Run(context.Background(), inv, "")

	calls := mock.GetCalls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"team", "create", "@acme:publishers", "--otp", "123456"}, calls[0].Args)
	assert.Equal(t, []string{"team", "create", "@acme:publishers"}, calls[1].Args)
}

func TestRun_FailingInvocationShortCircuits(t *testing.T) {
	mock := &procman.MockProcessManager{} // any call would panic
	exec := NewExecutor(mock, "npm", nil)

	res := exec.Run(context.Background(), Resolve("bogus:type", nil), "")

	assert.Equal(t, 1, res.ExitCode)
	assert.Contains(t, res.Stderr, "unknown operation type")
	assert.Empty(t, mock.GetCalls(), "failing invocations must not spawn a process")
}

func TestRun_ClassifiesOtpRequired(t *testing.T) {
	mock := &procman.MockProcessManager{
		CaptureRunFunc: func(_ context.Context, _ string, _ ...string) (procman.Capture, error) {
			return procman.Capture{
				Stderr:   []byte("npm ERR! code EOTP\nnpm ERR! This operation requires a one-time password.\n"),
				ExitCode: 1,
			}, nil
		},
	}
	exec := NewExecutor(mock, "npm", nil)
	inv := Resolve(store.TypeOwnerAdd, map[string]string{"user": "bob", "package": "lodash"})

	res := exec.Run(context.Background(), inv, "")

	assert.Equal(t, 1, res.ExitCode)
	assert.True(t, res.RequiresOtp)
	assert.False(t, res.AuthFailure)
}

func TestRun_ClassifiesAuthFailure(t *testing.T) {
	for _, code := range []string{"ENEEDAUTH", "E401"} {
		mock := &procman.MockProcessManager{
			CaptureRunFunc: func(_ context.Context, _ string, _ ...string) (procman.Capture, error) {
				return procman.Capture{Stderr: []byte("npm ERR! code " + code), ExitCode: 1}, nil
			},
		}
		res := NewExecutor(mock, "npm", nil).Run(context.Background(),
			Resolve(store.TypeOrgRemoveUser, map[string]string{"org": "@acme", "user": "bob"}), "")

		assert.True(t, res.AuthFailure, "stderr code %s must set authFailure", code)
	}
}

func TestRun_SpawnFailure(t *testing.T) {
	mock := &procman.MockProcessManager{
		CaptureRunFunc: func(_ context.Context, _ string, _ ...string) (procman.Capture, error) {
			return procman.Capture{ExitCode: -1}, errors.New("exec: \"npm\": executable file not found in $PATH")
		},
	}
	exec := NewExecutor(mock, "npm", nil)
	inv := Resolve(store.TypeTeamDestroy, map[string]string{"team": "@acme:old"})

	res := exec.Run(context.Background(), inv, "")

	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Stderr, "not found")
}

func TestRun_Timeout(t *testing.T) {
	mock := &procman.MockProcessManager{
		CaptureRunFunc: func(ctx context.Context, _ string, _ ...string) (procman.Capture, error) {
			<-ctx.Done()
			return procman.Capture{ExitCode: -1}, ctx.Err()
		},
	}
	exec := NewExecutor(mock, "npm", nil).WithTimeout(20 * time.Millisecond)
	inv := Resolve(store.TypeTeamCreate, map[string]string{"team": "@acme:slow"})

	res := exec.Run(context.Background(), inv, "")

	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Stderr, "timed out")
}

func TestWhoami(t *testing.T) {
	mock := &procman.MockProcessManager{
		RunFunc: func(_ context.Context, _ string, args ...string) ([]byte, error) {
			require.Equal(t, []string{"whoami"}, args)
			return []byte("bob\n"), nil
		},
	}
	user, err := NewExecutor(mock, "npm", nil).Whoami(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "bob", user)
}

func TestWhoami_LoggedOut(t *testing.T) {
	mock := &procman.MockProcessManager{
		RunFunc: func(_ context.Context, _ string, _ ...string) ([]byte, error) {
			return nil, errors.New("npm ERR! code ENEEDAUTH")
		},
	}
	_, err := NewExecutor(mock, "npm", nil).Whoami(context.Background())
	assert.Error(t, err)
}

func TestDetectOtpRequired(t *testing.T) {
	assert.True(t, detectOtpRequired("npm ERR! code EOTP"))
	assert.True(t, detectOtpRequired("This operation requires a One-Time Pass"))
	assert.False(t, detectOtpRequired("npm ERR! code E403"))
	assert.False(t, detectOtpRequired(""))
}
