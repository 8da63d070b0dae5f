package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite provides base functionality for integration tests
type IntegrationTestSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "squash-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir

	s.T().Logf("Integration test suite started in %s", s.tempDir)
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	s.cancel()

	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}

	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// Context returns the test context
func (s *IntegrationTestSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the temporary directory path
func (s *IntegrationTestSuite) TempDir() string {
	return s.tempDir
}

// CreateTempFile writes content to name inside the suite's directory
func (s *IntegrationTestSuite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(s.T(), os.WriteFile(path, content, 0o644))
	return path
}

// IntegrationTest skips the calling test in -short mode
func IntegrationTest(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
}

// SampleCSV renders rows [start, start+rows) of the sample data set as
// CSVWithNames
func SampleCSV(start, rows int) []byte {
	var sb strings.Builder
	sb.WriteString("id,name,score,active\n")
	for id := start; id < start+rows; id++ {
		row := SampleRow(id)
		fmt.Fprintf(&sb, "%d,%s,%g,%t\n", row[0], row[1], row[2], row[3])
	}
	return []byte(sb.String())
}

// CreateTestData writes numFiles CSV files of rowsPerFile sample rows to dir
// and returns their paths. Row ids continue across files.
func CreateTestData(t *testing.T, dir string, numFiles, rowsPerFile int) []string {
	t.Helper()
	paths := make([]string, numFiles)
	for i := 0; i < numFiles; i++ {
		paths[i] = filepath.Join(dir, fmt.Sprintf("part-%03d.csv", i))
		require.NoError(t, os.WriteFile(paths[i], SampleCSV(i*rowsPerFile, rowsPerFile), 0o644))
	}
	return paths
}
