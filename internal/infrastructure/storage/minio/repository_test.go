package minio

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioDockViz/pkg/errors"
)

const testKey = "structures/abc123.pdb"

type RepositoryTestSuite struct {
	suite.Suite
	api  *mockObjectAPI
	repo ObjectRepository
	now  time.Time
}

func (s *RepositoryTestSuite) SetupTest() {
	s.api = new(mockObjectAPI)
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewRepository(newTestClient(s.api), logging.NewNopLogger()).(*minioRepository)
	repo.now = func() time.Time { return s.now }
	s.repo = repo
}

func (s *RepositoryTestSuite) TearDownTest() {
	s.api.AssertExpectations(s.T())
}

func (s *RepositoryTestSuite) TestUpload() {
	data := []byte("ATOM      1  N   ALA A   1      11.104  13.207   2.100  1.00  0.00           N\n")
	meta := map[string]string{"filename": "1abc.pdb"}
	s.api.On("PutObject", mock.Anything, DefaultBucket, testKey, mock.Anything, int64(len(data)),
		minio.PutObjectOptions{ContentType: "chemical/x-pdb", UserMetadata: meta}).
		Return(minio.UploadInfo{Bucket: DefaultBucket, Key: testKey, ETag: "etag", Size: int64(len(data))}, nil)

	res, err := s.repo.Upload(context.Background(), testKey, data, "chemical/x-pdb", meta)
	s.Require().NoError(err)
	s.Equal(DefaultBucket, res.Bucket)
	s.Equal(testKey, res.ObjectKey)
	s.Equal("etag", res.ETag)
	s.Equal(int64(len(data)), res.Size)
	s.Equal(s.now, res.UploadedAt)
}

func (s *RepositoryTestSuite) TestUpload_DetectsContentType() {
	s.api.On("PutObject", mock.Anything, DefaultBucket, testKey, mock.Anything, int64(5),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool {
			return strings.HasPrefix(o.ContentType, "text/plain")
		})).
		Return(minio.UploadInfo{Size: 5}, nil)

	_, err := s.repo.Upload(context.Background(), testKey, []byte("hello"), "", nil)
	s.NoError(err)
}

func (s *RepositoryTestSuite) TestUpload_Errors() {
	_, err := s.repo.Upload(context.Background(), "", []byte("x"), "", nil)
	s.ErrorIs(err, ErrInvalidKey)

	s.api.On("PutObject", mock.Anything, DefaultBucket, testKey, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, assert.AnError)
	_, err = s.repo.Upload(context.Background(), testKey, []byte("x"), "text/plain", nil)
	s.True(errors.IsCode(err, errors.ErrCodeStorageError))
}

func (s *RepositoryTestSuite) TestDownload() {
	s.api.On("GetObject", mock.Anything, DefaultBucket, testKey, minio.GetObjectOptions{}).
		Return(io.NopCloser(strings.NewReader("content")), nil)

	data, err := s.repo.Download(context.Background(), testKey)
	s.Require().NoError(err)
	s.Equal("content", string(data))
}

func (s *RepositoryTestSuite) TestDownload_NotFound() {
	s.api.On("GetObject", mock.Anything, DefaultBucket, testKey, mock.Anything).
		Return(nil, minio.ErrorResponse{Code: "NoSuchKey"})

	_, err := s.repo.Download(context.Background(), testKey)
	s.True(errors.IsCode(err, errors.ErrCodeObjectNotFound))
	s.True(errors.IsNotFound(err))
}

func (s *RepositoryTestSuite) TestDownload_Failure() {
	s.api.On("GetObject", mock.Anything, DefaultBucket, testKey, mock.Anything).
		Return(nil, assert.AnError)

	_, err := s.repo.Download(context.Background(), testKey)
	s.True(errors.IsCode(err, errors.ErrCodeStorageError))
}

func (s *RepositoryTestSuite) TestExists() {
	s.api.On("StatObject", mock.Anything, DefaultBucket, testKey, mock.Anything).
		Return(minio.ObjectInfo{Key: testKey}, nil).Once()
	s.api.On("StatObject", mock.Anything, DefaultBucket, testKey, mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}).Once()
	s.api.On("StatObject", mock.Anything, DefaultBucket, testKey, mock.Anything).
		Return(minio.ObjectInfo{}, assert.AnError).Once()

	ok, err := s.repo.Exists(context.Background(), testKey)
	s.NoError(err)
	s.True(ok)

	ok, err = s.repo.Exists(context.Background(), testKey)
	s.NoError(err)
	s.False(ok)

	_, err = s.repo.Exists(context.Background(), testKey)
	s.True(errors.IsCode(err, errors.ErrCodeStorageError))
}

func (s *RepositoryTestSuite) TestDelete() {
	s.api.On("RemoveObject", mock.Anything, DefaultBucket, testKey, mock.Anything).Return(nil).Once()
	s.api.On("RemoveObject", mock.Anything, DefaultBucket, testKey, mock.Anything).
		Return(minio.ErrorResponse{Code: "NoSuchKey"}).Once()
	s.api.On("RemoveObject", mock.Anything, DefaultBucket, testKey, mock.Anything).Return(assert.AnError).Once()

	s.NoError(s.repo.Delete(context.Background(), testKey))
	s.NoError(s.repo.Delete(context.Background(), testKey))
	s.True(errors.IsCode(s.repo.Delete(context.Background(), testKey), errors.ErrCodeStorageError))
	s.ErrorIs(s.repo.Delete(context.Background(), ""), ErrInvalidKey)
}

func (s *RepositoryTestSuite) TestPresignedGetURL() {
	u, _ := url.Parse("http://localhost:9000/biodockviz-structures/structures/abc123.pdb?X-Amz-Signature=sig")
	s.api.On("PresignedGetObject", mock.Anything, DefaultBucket, testKey, time.Hour, url.Values{}).Return(u, nil).Once()
	s.api.On("PresignedGetObject", mock.Anything, DefaultBucket, testKey, 5*time.Minute, url.Values{}).Return(u, nil).Once()

	got, err := s.repo.PresignedGetURL(context.Background(), testKey, 0)
	s.Require().NoError(err)
	s.Equal(u.String(), got)

	_, err = s.repo.PresignedGetURL(context.Background(), testKey, 5*time.Minute)
	s.NoError(err)
}

func (s *RepositoryTestSuite) TestClosedClient() {
	repo := NewRepository(newTestClient(s.api), logging.NewNopLogger()).(*minioRepository)
	_ = repo.client.Close()

	_, err := repo.Download(context.Background(), testKey)
	s.ErrorIs(err, ErrClientClosed)
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestStructureObjectKey(t *testing.T) {
	cases := map[[2]string]string{
		{"abc", "pdb"}:   "structures/abc.pdb",
		{"abc", ".MOL2"}: "structures/abc.mol2",
		{"abc", ""}:      "structures/abc",
	}
	for in, want := range cases {
		if got := StructureObjectKey(in[0], in[1]); got != want {
			t.Errorf("StructureObjectKey(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}
