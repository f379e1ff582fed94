package mapper

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresMappingStore_Get(t *testing.T) {
	userID := uuid.New()
	signature := Signature([]string{"Name", "Amount"})

	t.Run("returns the cached mapping", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT mapping").
			WithArgs(userID, signature).
			WillReturnRows(pgxmock.NewRows([]string{"mapping"}).
				AddRow([]byte(`{"Name":"name","Amount":"amount"}`)))

		store := NewPostgresMappingStore(mock)
		m, err := store.Get(context.Background(), userID, signature)
		require.NoError(t, err)
		assert.Equal(t, Mapping{"Name": "name", "Amount": "amount"}, m)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cache miss is nil without error", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT mapping").
			WithArgs(userID, signature).
			WillReturnError(pgx.ErrNoRows)

		store := NewPostgresMappingStore(mock)
		m, err := store.Get(context.Background(), userID, signature)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("propagates query failures", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT mapping").
			WithArgs(userID, signature).
			WillReturnError(errors.New("connection refused"))

		store := NewPostgresMappingStore(mock)
		_, err = store.Get(context.Background(), userID, signature)
		assert.Error(t, err)
	})
}

func TestPostgresMappingStore_Put(t *testing.T) {
	userID := uuid.New()
	signature := Signature([]string{"Name", "Amount"})

	t.Run("upserts the encoded mapping", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO import_mappings").
			WithArgs(userID, signature, []byte(`{"Amount":"amount","Name":"name"}`)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		store := NewPostgresMappingStore(mock)
		err = store.Put(context.Background(), userID, signature, Mapping{"Name": "name", "Amount": "amount"})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates write failures", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO import_mappings").
			WithArgs(userID, signature, pgxmock.AnyArg()).
			WillReturnError(errors.New("deadlock detected"))

		store := NewPostgresMappingStore(mock)
		err = store.Put(context.Background(), userID, signature, Mapping{"Name": "name"})
		assert.Error(t, err)
	})
}
