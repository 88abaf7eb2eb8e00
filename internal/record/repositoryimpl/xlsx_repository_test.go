package repositoryimpl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/pkg/cerr"
	"github.com/ultrona/mantlog/pkg/storage"
)

func newRepo(t *testing.T) (*XLSXRepository, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	return NewXLSXRepository(s, "registro_mant_ultrona.xlsx"), dir
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	repo, _ := newRepo(t)

	d, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, d.Len())
	assert.Equal(t, []string{"Fecha y Hora", "Mantenimiento Realizado", "Operador"}, record.Columns())
}

func TestSaveThenLoad(t *testing.T) {
	repo, dir := newRepo(t)
	ctx := context.Background()

	d := record.NewDataset()
	d.Append(record.Record{Timestamp: "2024-03-01 09:00:00", Task: "Calibración", Operator: "Juan Ramos"})
	d.Append(record.Record{Timestamp: "sin fecha", Task: "Cambio de papel", Operator: "Paola Araya"})
	require.NoError(t, repo.Save(ctx, d))

	_, err := os.Stat(filepath.Join(dir, "registro_mant_ultrona.xlsx"))
	require.NoError(t, err)

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, d.Records, got.Records)
}

func TestSaveEmptyWritesHeaderOnly(t *testing.T) {
	repo, _ := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, record.NewDataset()))
	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestLoadCorruptFile(t *testing.T) {
	repo, dir := newRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "registro_mant_ultrona.xlsx"), []byte("garbage"), 0o644))

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.DataLoss))
}
