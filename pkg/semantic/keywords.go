package semantic

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Keyword is a curated free-text term that votes for one or more tags.
// Targets are tag short forms, optionally prefixed ("sc:Artifact").
type Keyword struct {
	Keyword string   `yaml:"keyword" json:"keyword"`
	Targets []string `yaml:"targets" json:"targets"`
}

type keywordFile struct {
	Keywords []Keyword `yaml:"keywords"`
}

// DefaultKeywords is the built-in keyword index. Some terms deliberately
// vote for unrelated tag groups ("click" is both a sound and an action).
var DefaultKeywords = []Keyword{
	{Keyword: "marmoset", Targets: []string{"Animal", "Animal-agent"}},
	{Keyword: "monkey", Targets: []string{"Animal", "Animal-agent"}},
	{Keyword: "macaque", Targets: []string{"Animal", "Animal-agent"}},
	{Keyword: "mouse", Targets: []string{"Animal", "Animal-agent"}},
	{Keyword: "rat", Targets: []string{"Animal", "Animal-agent"}},
	{Keyword: "participant", Targets: []string{"Human-agent", "Experiment-participant"}},
	{Keyword: "subject", Targets: []string{"Human-agent", "Experiment-participant"}},
	{Keyword: "stimulus", Targets: []string{"Sensory-event", "Experimental-stimulus"}},
	{Keyword: "image", Targets: []string{"Visual-presentation", "Image"}},
	{Keyword: "picture", Targets: []string{"Visual-presentation", "Image"}},
	{Keyword: "sound", Targets: []string{"Auditory-presentation", "Sound"}},
	{Keyword: "tone", Targets: []string{"Auditory-presentation", "Tone"}},
	{Keyword: "beep", Targets: []string{"Auditory-presentation", "Beep"}},
	{Keyword: "click", Targets: []string{"Sound", "Press"}},
	{Keyword: "button press", Targets: []string{"Press", "Push-button"}},
	{Keyword: "keypress", Targets: []string{"Press", "Keyboard-key"}},
	{Keyword: "response", Targets: []string{"Agent-action", "Participant-response"}},
	{Keyword: "fixation", Targets: []string{"Fixate", "Cross"}},
	{Keyword: "blink", Targets: []string{"Blink"}},
	{Keyword: "feedback", Targets: []string{"Feedback"}},
	{Keyword: "reward", Targets: []string{"Reward"}},
	{Keyword: "trial", Targets: []string{"Experimental-trial"}},
	{Keyword: "start", Targets: []string{"Onset"}},
	{Keyword: "end", Targets: []string{"Offset"}},
	{Keyword: "duration", Targets: []string{"Duration"}},
	{Keyword: "instructions", Targets: []string{"Instructional"}},
}

// LoadKeywords reads a YAML keyword file:
//
//	keywords:
//	  - keyword: marmoset
//	    targets: [Animal, Animal-agent]
func LoadKeywords(path string) ([]Keyword, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyword file: %w", err)
	}
	var f keywordFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse keyword file %s: %w", path, err)
	}
	for i, kw := range f.Keywords {
		if strings.TrimSpace(kw.Keyword) == "" || len(kw.Targets) == 0 {
			return nil, fmt.Errorf("parse keyword file %s: entry %d needs a keyword and targets", path, i)
		}
	}
	return f.Keywords, nil
}

// MergeKeywords combines keyword lists. A later entry for the same keyword
// (compared trimmed and lower-cased) replaces the earlier one in place.
func MergeKeywords(lists ...[]Keyword) []Keyword {
	var out []Keyword
	index := make(map[string]int)
	for _, list := range lists {
		for _, kw := range list {
			key := keywordKey(kw.Keyword)
			if key == "" {
				continue
			}
			kw.Keyword = key
			if i, ok := index[key]; ok {
				out[i] = kw
				continue
			}
			index[key] = len(out)
			out = append(out, kw)
		}
	}
	return out
}

func keywordKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
