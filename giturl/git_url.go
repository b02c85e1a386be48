// Package giturl parses and normalises git remote URLs so that two
// differently-spelled remotes (scp-form, ssh://, https://) can be compared
// for equivalence, and so that SSH hosts can be validated before they are
// ever handed to a subprocess.
package giturl

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// user@host.xz:path/to/repo.git
	scpURLRgx = regexp.MustCompile(`^(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?):(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// ssh://user@host.xz[:port]/path/to/repo.git
	sshURLRgx = regexp.MustCompile(`^ssh://(?P<user>[\w\-\.]+)@(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)??)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// https://host.xz[:port]/path/to/repo.git
	httpsURLRgx = regexp.MustCompile(`^https://(?P<host>([\w\-]+\.?[\w\-]+)+(\:\d+)?)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// file:///path/to/repo.git
	localURLRgx = regexp.MustCompile(`^file:///(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// host portion of a ssh://-style URL, used for ExtractSSHHost/NormaliseURL.
	// user is optional, password (a ':' before '@') is never matched here so
	// any URL carrying one fails to match at all.
	sshSchemeHostRgx = regexp.MustCompile(`^ssh://(?:(?P<user>[^@/:\s]+)@)?(?P<host>\[[0-9A-Fa-f:.]+\]|[^:/\s]+)(?::(?P<port>\d+))?/(?P<path>.+)$`)

	// scp-form host, same no-colon-in-user rule as above.
	scpSchemeHostRgx = regexp.MustCompile(`^(?P<user>[^@/:\s]+)@(?P<host>\[[0-9A-Fa-f:.]+\]|[^:/\s]+):(?P<path>.+)$`)

	hostCharsRgx = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	ipv6BodyRgx  = regexp.MustCompile(`^[0-9A-Fa-f:.]+$`)
)

// URL represents a parsed git remote url.
type URL struct {
	Scheme string // 'scp', 'ssh', 'https' or 'local'
	User   string // might be empty for https and local urls
	Host   string // host or host:port
	Path   string // path to the repo
	Repo   string // repository name from the path, includes .git
}

// Parse parses a raw url into a URL structure. Valid forms are
// user@host.xz:path/to/repo.git, ssh://user@host.xz[:port]/path/to/repo.git
// and https://host.xz[:port]/path/to/repo.git.
func Parse(rawURL string) (*URL, error) {
	gURL := &URL{}

	trimmed := strings.TrimSpace(rawURL)

	var sections []string

	switch {
	case IsSCPURL(trimmed):
		sections = scpURLRgx.FindStringSubmatch(trimmed)
		gURL.Scheme = "scp"
		gURL.User = sections[scpURLRgx.SubexpIndex("user")]
		gURL.Host = sections[scpURLRgx.SubexpIndex("host")]
		gURL.Path = sections[scpURLRgx.SubexpIndex("path")]
		gURL.Repo = sections[scpURLRgx.SubexpIndex("repo")]
	case IsSSHURL(trimmed):
		sections = sshURLRgx.FindStringSubmatch(trimmed)
		gURL.Scheme = "ssh"
		gURL.User = sections[sshURLRgx.SubexpIndex("user")]
		gURL.Host = sections[sshURLRgx.SubexpIndex("host")]
		gURL.Path = sections[sshURLRgx.SubexpIndex("path")]
		gURL.Repo = sections[sshURLRgx.SubexpIndex("repo")]
	case IsHTTPSURL(trimmed):
		sections = httpsURLRgx.FindStringSubmatch(trimmed)
		gURL.Scheme = "https"
		gURL.Host = sections[httpsURLRgx.SubexpIndex("host")]
		gURL.Path = sections[httpsURLRgx.SubexpIndex("path")]
		gURL.Repo = sections[httpsURLRgx.SubexpIndex("repo")]
	case IsLocalURL(trimmed):
		sections = localURLRgx.FindStringSubmatch(trimmed)
		gURL.Scheme = "local"
		gURL.Path = sections[localURLRgx.SubexpIndex("path")]
		gURL.Repo = sections[localURLRgx.SubexpIndex("repo")]
	default:
		return nil, fmt.Errorf(
			"provided '%s' remote url is invalid, supported urls are 'user@host.xz:path/to/repo.git', 'ssh://user@host.xz/path/to/repo.git' or 'https://host.xz/path/to/repo.git'",
			trimmed)
	}

	gURL.Path = strings.Trim(gURL.Path, "/")

	if gURL.Path == "" {
		return nil, fmt.Errorf("repo path (org) cannot be empty")
	}
	if gURL.Repo == "" || gURL.Repo == ".git" {
		return nil, fmt.Errorf("repo name is invalid")
	}

	return gURL, nil
}

// Equals reports whether two parsed URLs refer to the same remote repository.
func (lURL *URL) Equals(rURL *URL) bool {
	return lURL.Host == rURL.Host &&
		lURL.Path == rURL.Path &&
		(lURL.Repo == rURL.Repo ||
			strings.TrimSuffix(lURL.Repo, ".git") == strings.TrimSuffix(rURL.Repo, ".git"))
}

// IsSCPURL returns true if the supplied URL uses scp-like syntax.
func IsSCPURL(rawURL string) bool { return scpURLRgx.MatchString(rawURL) }

// IsSSHURL returns true if the supplied URL is an ssh:// URL.
func IsSSHURL(rawURL string) bool { return sshURLRgx.MatchString(rawURL) }

// IsHTTPSURL returns true if the supplied URL is an https:// URL.
func IsHTTPSURL(rawURL string) bool { return httpsURLRgx.MatchString(rawURL) }

// IsLocalURL returns true if the supplied URL is a file:// URL.
func IsLocalURL(rawURL string) bool { return localURLRgx.MatchString(rawURL) }

// IsValidHostname reports whether h is an acceptable SSH host: ASCII
// alphanumerics, '-', '_' and '.', no empty/pure-dot/leading-or-trailing-dot
// or consecutive-dot forms, or a bracketed IPv6 literal whose body is only
// hex digits, ':' and '.'.
func IsValidHostname(h string) bool {
	if h == "" {
		return false
	}
	if strings.HasPrefix(h, "[") && strings.HasSuffix(h, "]") {
		body := h[1 : len(h)-1]
		return body != "" && ipv6BodyRgx.MatchString(body)
	}
	if strings.HasPrefix(h, ".") || strings.HasSuffix(h, ".") {
		return false
	}
	if strings.Contains(h, "..") {
		return false
	}
	if strings.Trim(h, ".") == "" {
		return false
	}
	return hostCharsRgx.MatchString(h)
}

// ExtractSSHHost returns the host portion of a scp-form or ssh:// URL. It
// rejects URLs with an embedded password (a ':' in the user portion) and
// any host that fails IsValidHostname. Unknown schemes (https://, http://,
// file://, empty, or a bare local path) return ok=false.
func ExtractSSHHost(rawURL string) (host string, ok bool) {
	s := strings.TrimSpace(rawURL)

	if m := sshSchemeHostRgx.FindStringSubmatch(s); m != nil {
		h := m[sshSchemeHostRgx.SubexpIndex("host")]
		if !IsValidHostname(h) {
			return "", false
		}
		return h, true
	}

	if m := scpSchemeHostRgx.FindStringSubmatch(s); m != nil {
		h := m[scpSchemeHostRgx.SubexpIndex("host")]
		if !IsValidHostname(h) {
			return "", false
		}
		return h, true
	}

	return "", false
}

// NormaliseURL returns a canonical string form of rawURL suitable for
// equivalence comparison: an scp-form or ssh:// remote is parsed with Parse
// and re-serialised as scp-form user@host:path/repo (user defaults to "git",
// an ssh:// port is dropped, trailing ".git" stripped). Any other remote
// (https://, file://) or a rawURL that fails to parse is only trimmed and
// stripped of trailing slashes and ".git", so comparison never panics on
// input that happens not to be a recognisable remote.
func NormaliseURL(rawURL string) string {
	u, err := Parse(rawURL)
	if err != nil || (u.Scheme != "scp" && u.Scheme != "ssh") {
		return fallbackNormalise(rawURL)
	}
	user := u.User
	if user == "" {
		user = "git"
	}
	host := u.Host
	if u.Scheme == "ssh" {
		if i := strings.LastIndex(host, ":"); i != -1 {
			host = host[:i]
		}
	}
	repo := strings.TrimSuffix(u.Repo, ".git")
	return user + "@" + host + ":" + u.Path + "/" + repo
}

func fallbackNormalise(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	s = strings.TrimRight(s, "/")
	s = strings.TrimSuffix(s, ".git")
	return strings.TrimRight(s, "/")
}

// URLsMatch reports whether a and b refer to the same remote repository:
// equality of their NormaliseURL forms. An scp-form remote and an https://
// remote of the same repository therefore do not match.
func URLsMatch(a, b string) bool {
	return NormaliseURL(a) == NormaliseURL(b)
}
