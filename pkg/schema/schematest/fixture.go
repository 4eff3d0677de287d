// Package schematest provides a small in-memory vocabulary for tests.
package schematest

import (
	"context"

	"github.com/hed-standard/hed-lsp/pkg/schema"
)

// Spec is the version spec the fixture vocabulary is built for.
const Spec = "8.4.0,sc:score_1.0.0"

// Vocabulary builds the fixture vocabulary. It panics on error since the
// fixture is static.
func Vocabulary() *schema.Vocabulary {
	v, err := schema.NewVocabulary(schema.MustParseVersionSpec(Spec), Sources())
	if err != nil {
		panic(err)
	}
	return v
}

// Builder returns a schema.Builder that always yields the fixture vocabulary.
func Builder() schema.Builder {
	return schema.BuilderFunc(func(ctx context.Context, spec schema.VersionSpec) (*schema.Vocabulary, error) {
		return schema.NewVocabulary(spec, Sources())
	})
}

// Sources returns the namespace sources of the fixture.
func Sources() []schema.NamespaceSource {
	return []schema.NamespaceSource{base(), score()}
}

func base() schema.NamespaceSource {
	var tags []schema.TagSource
	add := func(t *schema.RawTag) *schema.RawTag {
		tags = append(tags, t)
		return t
	}

	event := add(schema.NewRawTag("Event", "Something that happens at a given time and place.", nil).
		With(schema.AttrSuggestedTag, "Task-property"))
	add(schema.NewRawTag("Sensory-event", "Something perceivable by the participant.", event))
	add(schema.NewRawTag("Agent-action", "Any action engaged in by an agent.", event))

	agent := add(schema.NewRawTag("Agent", "Someone or something that takes an active role.", nil).
		With(schema.AttrExtensionAllowed))
	add(schema.NewRawTag("Animal-agent", "An agent that is an animal.", agent))
	add(schema.NewRawTag("Human-agent", "An agent that is a person.", agent))

	item := add(schema.NewRawTag("Item", "An independently existing thing, living or nonliving.", nil).
		With(schema.AttrExtensionAllowed))
	bio := add(schema.NewRawTag("Biological-item", "An entity that is biological, that is, made of living matter.", item).
		With(schema.AttrExtensionAllowed))
	organism := add(schema.NewRawTag("Organism", "A living entity, more specifically a biological entity.", bio).
		With(schema.AttrExtensionAllowed))
	add(schema.NewRawTag("Animal", "A living organism that has membranous cell walls and feeds on organic material.", organism).
		With(schema.AttrExtensionAllowed))
	add(schema.NewRawTag("Human", "The bipedal primate mammal Homo sapiens.", organism))
	add(schema.NewRawTag("Object", "Something perceptible by one or more of the senses, especially by vision or touch.", item).
		With(schema.AttrExtensionAllowed))

	property := add(schema.NewRawTag("Property", "Something that pertains to a thing.", nil).
		With(schema.AttrExtensionAllowed))
	sensory := add(schema.NewRawTag("Sensory-property", "Relating to sensation or the physical senses.", property))
	presentation := add(schema.NewRawTag("Sensory-presentation", "The entity has a sensory manifestation.", sensory))
	add(schema.NewRawTag("Visual-presentation", "Something that is seen.", presentation))
	add(schema.NewRawTag("Auditory-presentation", "Something that is heard.", presentation))
	temporal := add(schema.NewRawTag("Temporal-property", "A characteristic of or relating to time.", property))
	duration := add(schema.NewRawTag("Duration", "The period of time during which something occurs.", temporal).
		With(schema.AttrUnique))
	add(schema.NewRawTag("#", "", duration).
		With(schema.AttrTakesValue).
		With(schema.AttrUnitClass, "timeUnit").
		With(schema.AttrDefaultUnits, "s"))

	action := add(schema.NewRawTag("Action", "Do something.", nil).
		With(schema.AttrExtensionAllowed))
	add(schema.NewRawTag("Move", "Move in a specified direction or manner.", action).
		With(schema.AttrExtensionAllowed))
	add(schema.NewRawTag("Communicate", "Convey knowledge of or about something.", action))

	definition := add(schema.NewRawTag("Definition", "A HED-specific utility tag whose child value is the name of the concept.", nil).
		With(schema.AttrRequireChild))
	add(schema.NewRawTag("#", "", definition).With(schema.AttrTakesValue))
	def := add(schema.NewRawTag("Def", "A HED-specific utility tag used with a defined name.", nil).
		With(schema.AttrRequireChild))
	add(schema.NewRawTag("#", "", def).With(schema.AttrTakesValue))
	expand := add(schema.NewRawTag("Def-expand", "A HED-specific utility tag that groups an expanded definition.", nil).
		With(schema.AttrRequireChild))
	add(schema.NewRawTag("#", "", expand).With(schema.AttrTakesValue))

	return schema.NamespaceSource{Prefix: "", Members: []string{""}, Tags: tags}
}

func score() schema.NamespaceSource {
	var tags []schema.TagSource
	add := func(t *schema.RawTag) *schema.RawTag {
		tags = append(tags, t)
		return t
	}

	// Standard tags shipped inside the partnered file; not members of "sc".
	add(schema.NewRawTag("Event", "Something that happens at a given time and place.", nil))

	modulator := add(schema.NewRawTag("Sleep-modulator", "A factor that modulates sleep.", nil).
		With(schema.AttrInLibrary, "score").
		With(schema.AttrExtensionAllowed))
	add(schema.NewRawTag("Sleep-deprivation", "Reduction of sleep below the usual amount.", modulator).
		With(schema.AttrInLibrary, "score"))
	artifact := add(schema.NewRawTag("Artifact", "An alteration of the recording not caused by the brain.", nil).
		With(schema.AttrInLibrary, "score"))
	add(schema.NewRawTag("Eye-blink-artifact", "Artifact caused by eye blinks.", artifact).
		With(schema.AttrInLibrary, "score"))

	return schema.NamespaceSource{Prefix: "sc", Members: []string{"score"}, Tags: tags}
}
