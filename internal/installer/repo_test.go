package installer

import "testing"

func TestRepoSourceFetcherMatches(t *testing.T) {
	f := NewRepoArchiveFetcher()

	cases := []struct {
		url  string
		want bool
	}{
		{"repo://philcali/pandemic", true},
		{"repo://philcali/pandemic@v1.2.0", true},
		{"https://example.com/x.tar.gz", false},
		{"file:///tmp/x", false},
	}
	for _, tc := range cases {
		if got := f.Matches(tc.url); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestGithubHTTPClientNilWithoutToken(t *testing.T) {
	t.Setenv("PANDEMIC_GITHUB_TOKEN", "")
	if c := githubHTTPClient(); c != nil {
		t.Fatal("expected nil client with no token set")
	}
}

func TestGithubHTTPClientAuthenticatedWithToken(t *testing.T) {
	t.Setenv("PANDEMIC_GITHUB_TOKEN", "ghp_example")
	if c := githubHTTPClient(); c == nil {
		t.Fatal("expected a non-nil authenticated client when token is set")
	}
}
