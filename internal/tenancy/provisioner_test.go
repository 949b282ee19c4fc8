package tenancy

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestProvisioner(t *testing.T, backoff time.Duration) *Provisioner {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	return NewProvisioner(logger, "postgres://admin@localhost/postgres", "postgres://app@localhost/lokapos", backoff, nil)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestEnsureProvisionsOnce(t *testing.T) {
	p := newTestProvisioner(t, time.Minute)

	var createCalls, syncCalls int
	p.createDB = func(ctx context.Context, subdomain, dbName string) (bool, error) {
		createCalls++
		require.Equal(t, DatabaseName("kopikita"), dbName)
		return true, nil
	}
	p.syncSchema = func(ctx context.Context, dsn string) error {
		syncCalls++
		return nil
	}

	first, err := p.Ensure(context.Background(), "kopikita")
	require.NoError(t, err)
	require.True(t, first.Created)
	require.Contains(t, first.ConnectionString, first.DatabaseName)

	second, err := p.Ensure(context.Background(), "kopikita")
	require.NoError(t, err)
	require.Equal(t, first.ConnectionString, second.ConnectionString)

	require.Equal(t, 1, createCalls)
	require.Equal(t, 1, syncCalls)
}

func TestEnsureExistingDatabaseIsNotCreated(t *testing.T) {
	p := newTestProvisioner(t, time.Minute)
	p.createDB = func(ctx context.Context, subdomain, dbName string) (bool, error) {
		return false, nil
	}
	p.syncSchema = func(ctx context.Context, dsn string) error { return nil }

	res, err := p.Ensure(context.Background(), "lama")
	require.NoError(t, err)
	require.False(t, res.Created)
}

func TestEnsureFailureIsCachedWithinBackoff(t *testing.T) {
	p := newTestProvisioner(t, time.Minute)

	current := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	p.WithNow(func() time.Time { return current })

	var createCalls int
	p.createDB = func(ctx context.Context, subdomain, dbName string) (bool, error) {
		createCalls++
		return false, newProvisionError(subdomain, CodePermissionDenied, errors.New("permission denied to create database"))
	}
	p.syncSchema = func(ctx context.Context, dsn string) error { return nil }

	_, err := p.Ensure(context.Background(), "kopikita")
	var perr *ProvisionError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, CodePermissionDenied, perr.Code)
	require.Contains(t, perr.Hint(), "CREATEDB")

	// Within the window the cached error replays without a new attempt.
	current = current.Add(30 * time.Second)
	_, err = p.Ensure(context.Background(), "kopikita")
	require.ErrorAs(t, err, &perr)
	require.Equal(t, CodePermissionDenied, perr.Code)
	require.Equal(t, 1, createCalls)

	// After the window a retry is allowed.
	current = current.Add(31 * time.Second)
	_, err = p.Ensure(context.Background(), "kopikita")
	require.Error(t, err)
	require.Equal(t, 2, createCalls)
}

func TestEnsureSuccessClearsCachedFailure(t *testing.T) {
	p := newTestProvisioner(t, time.Minute)

	current := time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)
	p.WithNow(func() time.Time { return current })

	fail := true
	p.createDB = func(ctx context.Context, subdomain, dbName string) (bool, error) {
		if fail {
			return false, newProvisionError(subdomain, CodeConnectionFailed, errors.New("refused"))
		}
		return true, nil
	}
	p.syncSchema = func(ctx context.Context, dsn string) error { return nil }

	_, err := p.Ensure(context.Background(), "kopikita")
	require.Error(t, err)

	fail = false
	current = current.Add(2 * time.Minute)
	res, err := p.Ensure(context.Background(), "kopikita")
	require.NoError(t, err)
	require.True(t, res.Created)

	p.mu.Lock()
	_, failureCached := p.failures["kopikita"]
	p.mu.Unlock()
	require.False(t, failureCached)
}

func TestEnsureMigrationFailureIsTyped(t *testing.T) {
	p := newTestProvisioner(t, time.Minute)
	p.createDB = func(ctx context.Context, subdomain, dbName string) (bool, error) {
		return true, nil
	}
	p.syncSchema = func(ctx context.Context, dsn string) error {
		return errors.New("relation exists with wrong shape")
	}

	_, err := p.Ensure(context.Background(), "kopikita")
	var perr *ProvisionError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, CodeMigrationFailed, perr.Code)
	require.Equal(t, 503, perr.HTTPStatus())
}

func TestResetForcesReprovision(t *testing.T) {
	p := newTestProvisioner(t, time.Minute)

	var createCalls int
	p.createDB = func(ctx context.Context, subdomain, dbName string) (bool, error) {
		createCalls++
		return createCalls == 1, nil
	}
	p.syncSchema = func(ctx context.Context, dsn string) error { return nil }

	_, err := p.Ensure(context.Background(), "kopikita")
	require.NoError(t, err)

	p.Reset("kopikita")
	res, err := p.Ensure(context.Background(), "kopikita")
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, 2, createCalls)
}
