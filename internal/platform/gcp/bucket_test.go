package gcp

import "testing"

func TestParseURI(t *testing.T) {
	cases := []struct {
		in, bucket, prefix string
		wantErr            bool
	}{
		{"gs://kb/articles/", "kb", "articles/", false},
		{"gs://kb", "kb", "", false},
		{"  gs://kb/a/b.yaml ", "kb", "a/b.yaml", false},
		{"gs:///x", "", "", true},
		{"./local/dir", "", "", true},
	}
	for _, tc := range cases {
		bucket, prefix, err := ParseURI(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseURI(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseURI(%q): %v", tc.in, err)
		}
		if bucket != tc.bucket || prefix != tc.prefix {
			t.Fatalf("ParseURI(%q) = %q, %q", tc.in, bucket, prefix)
		}
	}
}
