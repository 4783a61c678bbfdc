package favour

import (
	"testing"
)

func newTestParser() *Parser {
	return NewParser(DefaultConfig())
}

func TestParseDelta(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name      string
		text      string
		wantDelta int
		wantTag   bool
	}{
		{
			name:      "increase",
			text:      "Glad to hear it! [affinity increase:2]",
			wantDelta: 2,
			wantTag:   true,
		},
		{
			name:      "decrease",
			text:      "That was rude. [affinity decrease:3]",
			wantDelta: -3,
			wantTag:   true,
		},
		{
			name:      "unchanged",
			text:      "Hmm. [affinity unchanged]",
			wantDelta: 0,
			wantTag:   true,
		},
		{
			name:      "favour keyword",
			text:      "[favour increase:1]",
			wantDelta: 1,
			wantTag:   true,
		},
		{
			name:      "favor spelling",
			text:      "[favor decrease:2]",
			wantDelta: -2,
			wantTag:   true,
		},
		{
			name:      "fullwidth brackets and colon",
			text:      "ok ［affinity increase：2］",
			wantDelta: 2,
			wantTag:   true,
		},
		{
			name:      "increase clamped to max",
			text:      "[affinity increase:10]",
			wantDelta: 3,
			wantTag:   true,
		},
		{
			name:      "decrease clamped to max",
			text:      "[affinity decrease:15]",
			wantDelta: -5,
			wantTag:   true,
		},
		{
			name:      "zero increase clamped to min",
			text:      "[affinity increase:0]",
			wantDelta: 1,
			wantTag:   true,
		},
		{
			name:      "negative increase treated as magnitude",
			text:      "[affinity increase:-2]",
			wantDelta: 2,
			wantTag:   true,
		},
		{
			name:      "mixed case",
			text:      "[Affinity Increase:2]",
			wantDelta: 2,
			wantTag:   true,
		},
		{
			name:      "keyword only still counts as tagged",
			text:      "[affinity]",
			wantDelta: 0,
			wantTag:   true,
		},
		{
			name:      "no tag at all",
			text:      "Just a normal reply.",
			wantDelta: 0,
			wantTag:   false,
		},
		{
			name:      "bracketed non-tag ignored",
			text:      "[laughing] good one",
			wantDelta: 0,
			wantTag:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.text)
			if got.Delta != tt.wantDelta {
				t.Errorf("Delta = %d, want %d", got.Delta, tt.wantDelta)
			}
			if got.HasAffinityTag != tt.wantTag {
				t.Errorf("HasAffinityTag = %v, want %v", got.HasAffinityTag, tt.wantTag)
			}
		})
	}
}

func TestParseLastTagWins(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "decrease after increase",
			text: "Nice! [affinity increase:2] ... actually no. [affinity decrease:3]",
			want: -3,
		},
		{
			name: "increase after decrease",
			text: "[affinity decrease:3] wait, that was funny [affinity increase:1]",
			want: 1,
		},
		{
			name: "unchanged after increase",
			text: "[affinity increase:2][affinity unchanged]",
			want: 0,
		},
		{
			name: "invalid last tag skipped",
			text: "[affinity increase:2] hmm [affinity decrease:lots]",
			want: 2,
		},
		{
			name: "keyword-only last tag skipped",
			text: "[affinity increase:2] [affinity is a system thing]",
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Parse(tt.text); got.Delta != tt.want {
				t.Errorf("Delta = %d, want %d", got.Delta, tt.want)
			}
		})
	}
}

func TestParseRelationship(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		text string
		want *RelationshipEvent
	}{
		{
			name: "granted",
			text: "Alright. [user requests relationship confirmation:friend:true]",
			want: &RelationshipEvent{Name: "friend", Unique: false},
		},
		{
			name: "granted exclusive",
			text: "[user requests relationship confirmation:wife:true:true]",
			want: &RelationshipEvent{Name: "wife", Unique: true},
		},
		{
			name: "prefix optional",
			text: "[relationship confirmation: big sister : true]",
			want: &RelationshipEvent{Name: "big sister", Unique: false},
		},
		{
			name: "declined",
			text: "[user requests relationship confirmation:master:false]",
			want: nil,
		},
		{
			name: "empty name",
			text: "[user requests relationship confirmation: :true]",
			want: nil,
		},
		{
			name: "last tag wins",
			text: "[relationship confirmation:pet:true] on second thought [relationship confirmation:pet:false]",
			want: nil,
		},
		{
			name: "fullwidth",
			text: "［user requests relationship confirmation：friend：true］",
			want: &RelationshipEvent{Name: "friend", Unique: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.text).Relationship
			if tt.want == nil {
				if got != nil {
					t.Fatalf("Relationship = %+v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("Relationship = nil, want %+v", tt.want)
			}
			if got.Name != tt.want.Name || got.Unique != tt.want.Unique {
				t.Errorf("Relationship = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStrip(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "affinity tag removed",
			text: "Glad to hear it! [affinity increase:2]",
			want: "Glad to hear it!",
		},
		{
			name: "relationship tag removed",
			text: "Fine, friends then. [user requests relationship confirmation:friend:true]",
			want: "Fine, friends then.",
		},
		{
			name: "all tags removed, not just the winner",
			text: "[affinity increase:2] hello [affinity decrease:3]",
			want: "hello",
		},
		{
			name: "non-tag brackets untouched",
			text: "[laughing] that's great [affinity increase:1]",
			want: "[laughing] that's great",
		},
		{
			name: "blank runs collapsed",
			text: "line one\n\n[affinity increase:1]\n\nline two",
			want: "line one\n\nline two",
		},
		{
			name: "no tags",
			text: "plain text",
			want: "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Strip(tt.text); got != tt.want {
				t.Errorf("Strip() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStripIdempotent(t *testing.T) {
	p := newTestParser()

	inputs := []string{
		"Glad to hear it! [affinity increase:2]",
		"[affinity decrease:3][user requests relationship confirmation:wife:true:true]",
		"[laughing]\n\n\ntext with   trailing spaces  \nand more",
		"",
	}
	for _, in := range inputs {
		once := p.Strip(in)
		twice := p.Strip(once)
		if once != twice {
			t.Errorf("Strip not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
