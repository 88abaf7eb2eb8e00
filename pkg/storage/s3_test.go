package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrefix(t *testing.T) {
	cases := map[string]string{
		"":          "",
		"/":         "",
		"ultrona":   "ultrona/",
		"ultrona/":  "ultrona/",
		"/a/b/":     "a/b/",
		"//ultrona": "ultrona/",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizePrefix(in), in)
	}
}

func TestObjectKeys(t *testing.T) {
	s3s := &S3Storage{prefix: normalizePrefix("ultrona")}
	ms := &MinioStorage{prefix: normalizePrefix("ultrona/")}
	bare := &S3Storage{}

	for _, tc := range []struct {
		path string
		want string
	}{
		{"registro_mant_ultrona.xlsx", "ultrona/registro_mant_ultrona.xlsx"},
		{"/registro_mant_ultrona.xlsx", "ultrona/registro_mant_ultrona.xlsx"},
		{"backups_ultrona/respaldo_ultrona_2024-03-01_09-00-00.xlsx", "ultrona/backups_ultrona/respaldo_ultrona_2024-03-01_09-00-00.xlsx"},
	} {
		assert.Equal(t, tc.want, s3s.key(tc.path), tc.path)
		assert.Equal(t, tc.want, ms.key(tc.path), tc.path)
	}
	assert.Equal(t, "registro_mant_ultrona.xlsx", bare.key("/registro_mant_ultrona.xlsx"))
}

// listBucketXML renders a ListObjectsV2 response for keys.
func listBucketXML(bucket, prefix string, keys ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&b, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount>", bucket, prefix, len(keys))
	b.WriteString("<MaxKeys>1000</MaxKeys><Delimiter>/</Delimiter><IsTruncated>false</IsTruncated>")
	for _, k := range keys {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>4</Size><StorageClass>STANDARD</StorageClass></Contents>", k)
	}
	b.WriteString("</ListBucketResult>")
	return b.String()
}

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>` +
	`<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`

// fakeBucket answers the subset of the S3 REST API used by List and Read,
// path style, for bucket "logs".
type fakeBucket struct {
	objects    map[string]string
	listPrefix string
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/logs")
	switch {
	case r.Method == http.MethodHead && (path == "" || path == "/"):
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && r.URL.Query().Get("list-type") == "2":
		f.listPrefix = r.URL.Query().Get("prefix")
		var keys []string
		for k := range f.objects {
			rest, ok := strings.CutPrefix(k, f.listPrefix)
			if ok && !strings.Contains(rest, "/") {
				keys = append(keys, k)
			}
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, listBucketXML("logs", f.listPrefix, keys...))
	case r.Method == http.MethodGet:
		body, ok := f.objects[strings.TrimPrefix(path, "/")]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, noSuchKeyXML)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.Header().Set("Last-Modified", "Fri, 01 Mar 2024 09:00:00 GMT")
		fmt.Fprint(w, body)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newFakeBucket() *fakeBucket {
	objects := map[string]string{}
	objects["ultrona/registro_mant_ultrona.xlsx"] = "main"
	objects["ultrona/backups_ultrona/respaldo_ultrona_2024-03-02_09-00-00.xlsx"] = "b2"
	objects["ultrona/backups_ultrona/respaldo_ultrona_2024-03-01_09-00-00.xlsx"] = "b1"
	objects["ultrona/backups_ultrona/old/respaldo_ultrona_2023-01-01_00-00-00.xlsx"] = "nested"
	objects["other/backups_ultrona/respaldo_ultrona_2024-03-03_09-00-00.xlsx"] = "foreign"
	return &fakeBucket{objects: objects}
}

func newStubS3Storage(t *testing.T, bucket http.Handler) *S3Storage {
	t.Helper()
	srv := httptest.NewServer(bucket)
	t.Cleanup(srv.Close)
	client := s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(srv.URL),
		UsePathStyle: true,
		Credentials:  aws.AnonymousCredentials{},
	})
	return &S3Storage{client: client, bucket: "logs", prefix: normalizePrefix("ultrona")}
}

func TestS3StorageList(t *testing.T) {
	fake := newFakeBucket()
	s := newStubS3Storage(t, fake)

	paths, err := s.List(context.Background(), "backups_ultrona")
	require.NoError(t, err)
	assert.Equal(t, "ultrona/backups_ultrona/", fake.listPrefix)
	assert.Equal(t, []string{
		"backups_ultrona/respaldo_ultrona_2024-03-01_09-00-00.xlsx",
		"backups_ultrona/respaldo_ultrona_2024-03-02_09-00-00.xlsx",
	}, paths)
}

func TestS3StorageRead(t *testing.T) {
	s := newStubS3Storage(t, newFakeBucket())

	data, err := s.Read(context.Background(), "registro_mant_ultrona.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "main", string(data))

	_, err = s.Read(context.Background(), "missing.xlsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}
