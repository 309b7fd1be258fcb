package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

func newTestBBoltCache(t *testing.T) *BBoltSessionCache {
	t.Helper()
	c, err := NewBBoltSessionCache(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestBBoltSessionCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestBBoltCache(t)

	loginTime := time.Now().Truncate(time.Millisecond)
	in := &RawSession{
		Record:    []byte(`{"uid":"u1","bio":"","followers":[],"following":[]}`),
		LoginTime: loginTime,
		AutoLogin: true,
	}
	require.NoError(t, c.Write(ctx, in))

	out, err := c.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.Record, out.Record)
	assert.True(t, loginTime.Equal(out.LoginTime), "login time should survive the round trip at millisecond precision")
	assert.True(t, out.AutoLogin)
}

func TestBBoltSessionCache_EmptyReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	c := newTestBBoltCache(t)

	out, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestBBoltSessionCache_PartialStateReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	c := newTestBBoltCache(t)

	require.NoError(t, c.Write(ctx, &RawSession{
		Record:    []byte(`{"uid":"u1"}`),
		LoginTime: time.Now(),
		AutoLogin: true,
	}))

	// Drop the timestamp key to simulate a torn write.
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Delete([]byte(KeyLoginTime))
	})
	require.NoError(t, err)

	out, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestBBoltSessionCache_CorruptTimestampReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	c := newTestBBoltCache(t)

	require.NoError(t, c.Write(ctx, &RawSession{
		Record:    []byte(`{"uid":"u1"}`),
		LoginTime: time.Now(),
		AutoLogin: true,
	}))

	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put([]byte(KeyLoginTime), []byte("not-a-number"))
	})
	require.NoError(t, err)

	out, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestBBoltSessionCache_Clear(t *testing.T) {
	ctx := context.Background()
	c := newTestBBoltCache(t)

	require.NoError(t, c.Write(ctx, &RawSession{
		Record:    []byte(`{"uid":"u1"}`),
		LoginTime: time.Now(),
		AutoLogin: true,
	}))
	require.NoError(t, c.Clear(ctx))

	out, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestBBoltSessionCache_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	c1, err := NewBBoltSessionCache(path)
	require.NoError(t, err)
	require.NoError(t, c1.Write(ctx, &RawSession{
		Record:    []byte(`{"uid":"u1"}`),
		LoginTime: time.Now(),
		AutoLogin: true,
	}))
	require.NoError(t, c1.Close())

	c2, err := NewBBoltSessionCache(path)
	require.NoError(t, err)
	defer c2.Close()

	out, err := c2.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, []byte(`{"uid":"u1"}`), out.Record)
}
