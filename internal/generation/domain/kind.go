package domain

import (
	"strings"

	capabilitydomain "github.com/pendtiumpraz/ecosystem-IP-ai-sub003/internal/capability/domain"
)

// Kind names what kind of creative artifact a generation produces. The set
// is closed; each kind fixes the capability that serves it and the system
// prompt sent with it.
type Kind string

const (
	KindSynopsis         Kind = "synopsis"
	KindLogline          Kind = "logline"
	KindStoryChapter     Kind = "story_chapter"
	KindCharacterProfile Kind = "character_profile"
	KindCharacterImage   Kind = "character_image"
	KindMoodboardImage   Kind = "moodboard_image"
	KindStoryboardVideo  Kind = "storyboard_video"
	KindVoiceover        Kind = "voiceover"
	KindSoundtrack       Kind = "soundtrack"

	// KindFreeform is the permissive default: any unrecognized kind string
	// is accepted as a plain text generation with no system prompt, so new
	// client-side kinds keep working before the backend learns them.
	KindFreeform Kind = "freeform"
)

type kindSpec struct {
	capability   capabilitydomain.CapabilityType
	systemPrompt string
}

var kindSpecs = map[Kind]kindSpec{
	KindSynopsis: {
		capability:   capabilitydomain.CapabilityText,
		systemPrompt: "You are a story development assistant. Write a compelling synopsis for the premise the user describes. Keep it under 400 words.",
	},
	KindLogline: {
		capability:   capabilitydomain.CapabilityText,
		systemPrompt: "You are a story development assistant. Distill the user's premise into a single-sentence logline.",
	},
	KindStoryChapter: {
		capability:   capabilitydomain.CapabilityText,
		systemPrompt: "You are a novelist. Write the next chapter of the story the user describes, matching its established tone and voice.",
	},
	KindCharacterProfile: {
		capability:   capabilitydomain.CapabilityText,
		systemPrompt: "You are a character designer. Produce a structured character profile: background, motivation, appearance, voice.",
	},
	KindCharacterImage: {
		capability: capabilitydomain.CapabilityImage,
	},
	KindMoodboardImage: {
		capability: capabilitydomain.CapabilityImage,
	},
	KindStoryboardVideo: {
		capability: capabilitydomain.CapabilityVideo,
	},
	KindVoiceover: {
		capability: capabilitydomain.CapabilityAudio,
	},
	KindSoundtrack: {
		capability: capabilitydomain.CapabilityAudio,
	},
	KindFreeform: {
		capability: capabilitydomain.CapabilityText,
	},
}

// ParseKind maps an inbound kind string to a known Kind. Unrecognized
// strings map to KindFreeform rather than erroring.
func ParseKind(s string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindSpecs[k]; ok {
		return k
	}
	return KindFreeform
}

func (k Kind) String() string { return string(k) }

func (k Kind) Capability() capabilitydomain.CapabilityType {
	if spec, ok := kindSpecs[k]; ok {
		return spec.capability
	}
	return capabilitydomain.CapabilityText
}

func (k Kind) SystemPrompt() string {
	if spec, ok := kindSpecs[k]; ok {
		return spec.systemPrompt
	}
	return ""
}

// Kinds returns every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{
		KindSynopsis,
		KindLogline,
		KindStoryChapter,
		KindCharacterProfile,
		KindCharacterImage,
		KindMoodboardImage,
		KindStoryboardVideo,
		KindVoiceover,
		KindSoundtrack,
		KindFreeform,
	}
}
