package crawler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/music-crawler/internal/document"
	"github.com/JakeFAU/music-crawler/internal/music"
	"github.com/JakeFAU/music-crawler/internal/store"
)

// Profile page selectors.
const (
	profileNameSelector = "div.profile_header span.profile_username"
	profileInfoSelector = "div.profile_header span.profile_info"
)

// ProfileURL returns the profile page URL for username on site.
func ProfileURL(site, username string) string {
	return strings.TrimRight(site, "/") + "/~" + username
}

// Profile scrapes an RYM user page. Its natural key is the username.
type Profile struct {
	state State
	deps  Deps
	data  music.Profile
}

// NewProfile builds a Profile node for username.
func NewProfile(deps Deps, username string) *Profile {
	url := ProfileURL(deps.siteURL(), username)
	p := &Profile{deps: deps}
	p.state = newState(KindProfile, url, "RYM profile")
	p.data = music.Profile{Name: username, URL: url}
	return p
}

// State implements Scrapable.
func (p *Profile) State() *State { return &p.state }

// Record returns the profile as extracted or loaded from the store.
func (p *Profile) Record() music.Profile { return p.data }

// Existing implements Persistable.
func (p *Profile) Existing(ctx context.Context) (int64, bool, error) {
	rec, err := p.deps.Store.FindProfile(ctx, p.data.Name)
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("find profile: %w", err)
	}
	p.data = rec
	return rec.ID, true, nil
}

// Extract implements Extractable.
func (p *Profile) Extract(ctx context.Context) error {
	doc, err := p.deps.Pages.Fetch(ctx, p.state.URL)
	if err != nil {
		return fetchFailure(err)
	}
	if err := p.extract(doc); err != nil {
		return extractionFailure(err)
	}
	return nil
}

func (p *Profile) extract(doc *document.Document) error {
	name, err := doc.Element(profileNameSelector, "username", true)
	if err != nil {
		return err
	}
	if shown := strings.TrimPrefix(name.Text(), "~"); shown != "" && !strings.EqualFold(shown, p.data.Name) {
		return fmt.Errorf("profile page shows %q, want %q", shown, p.data.Name)
	}

	info, err := doc.Element(profileInfoSelector, "age and gender", false)
	if err != nil {
		return err
	}
	p.data.Age, p.data.Gender = parseProfileInfo(info.Text())
	return nil
}

// parseProfileInfo reads text such as "32 / Male". Either half may be absent.
func parseProfileInfo(s string) (int, music.Gender) {
	var (
		age    int
		gender music.Gender
	)
	for _, part := range strings.Split(s, "/") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.Atoi(part); err == nil {
			age = n
			continue
		}
		if g := music.ParseGender(part); g != music.GenderUnknown {
			gender = g
		}
	}
	return age, gender
}

// ScrapeDependencies implements DependencyResolvable; profiles have none.
func (p *Profile) ScrapeDependencies(context.Context) error { return nil }

// Save implements Persistable.
func (p *Profile) Save(ctx context.Context) (int64, error) {
	saved, err := p.deps.Store.SaveProfile(ctx, p.data)
	if err != nil {
		return 0, fmt.Errorf("save profile: %w", err)
	}
	p.data = saved
	return saved.ID, nil
}

// PrintInfo implements Scrapable.
func (p *Profile) PrintInfo(logger *zap.Logger) {
	logger.Info("profile",
		zap.String("name", p.data.Name),
		zap.Int("age", p.data.Age),
		zap.String("gender", string(p.data.Gender)),
	)
}
