package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/elysiawen/SubLinks-sub001/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sublinks.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedSources(t *testing.T, s *Store) {
	t.Helper()
	err := s.PutSettings(model.Settings{
		Sources: []model.UpstreamSource{
			{Name: "A", URL: "https://a.example.com/sub", IsDefault: true},
			{Name: "B", URL: "https://b.example.com/sub"},
		},
		CacheDurationHours: 12,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestSubscription_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	seedSources(t, s)

	sub := &model.Subscription{
		Token:           NewToken(),
		Owner:           "alice",
		Remark:          "laptop",
		Enabled:         true,
		GroupRef:        "default",
		RuleRef:         "custom-1",
		CustomRules:     "DOMAIN,example.com,Proxy\n",
		SelectedSources: []string{"B", "A"},
	}
	if err := s.PutSubscription(sub); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetSubscription(sub.Token)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, sub) {
		t.Fatalf("got %+v, want %+v", got, sub)
	}

	if err := s.DeleteSubscription(sub.Token); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetSubscription(sub.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete err = %v, want ErrNotFound", err)
	}
}

func TestPutSubscription_RejectsEmptyToken(t *testing.T) {
	s := openTestStore(t)
	seedSources(t, s)

	err := s.PutSubscription(&model.Subscription{SelectedSources: []string{"A"}})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestPutSubscription_RejectsNoValidSources(t *testing.T) {
	s := openTestStore(t)
	seedSources(t, s)

	err := s.PutSubscription(&model.Subscription{
		Token:           NewToken(),
		SelectedSources: []string{"Gone"},
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestConfigSet_AutoIDAndKindValidation(t *testing.T) {
	s := openTestStore(t)

	set := &model.ConfigSet{Name: "my groups", Kind: model.SetGroups, Content: "Fast`select`HK1\n"}
	if err := s.PutConfigSet(set); err != nil {
		t.Fatal(err)
	}
	if set.ID == "" {
		t.Fatal("PutConfigSet did not mint an ID")
	}

	got, err := s.GetConfigSet(set.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != set.Name || got.Kind != set.Kind {
		t.Fatalf("got %+v", got)
	}

	err = s.PutConfigSet(&model.ConfigSet{Name: "bad", Kind: "scripts"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
}

func TestSettings_DefaultsWhenUnset(t *testing.T) {
	s := openTestStore(t)

	settings, err := s.Settings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.CacheDurationHours != model.DefaultCacheDurationHours {
		t.Fatalf("CacheDurationHours = %d", settings.CacheDurationHours)
	}
	if len(settings.Sources) != 0 {
		t.Fatalf("Sources = %v", settings.Sources)
	}
}

func TestPutSettings_Validation(t *testing.T) {
	s := openTestStore(t)

	cases := []model.Settings{
		{Sources: []model.UpstreamSource{{Name: "", URL: "https://x"}}},
		{Sources: []model.UpstreamSource{{Name: "A", URL: ""}}},
		{Sources: []model.UpstreamSource{
			{Name: "A", URL: "https://x"},
			{Name: "A", URL: "https://y"},
		}},
	}
	for i, c := range cases {
		err := s.PutSettings(c)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("case %d: err = %v, want *ValidationError", i, err)
		}
	}
}

func TestListSubscriptions(t *testing.T) {
	s := openTestStore(t)
	seedSources(t, s)

	for _, owner := range []string{"alice", "bob"} {
		err := s.PutSubscription(&model.Subscription{
			Token:           NewToken(),
			Owner:           owner,
			Enabled:         true,
			SelectedSources: []string{"A"},
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	subs, err := s.ListSubscriptions()
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d subscriptions, want 2", len(subs))
	}
}
