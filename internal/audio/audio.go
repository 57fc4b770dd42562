// internal/audio/audio.go
//
// Sound cue catalog for the client. The server never plays audio; it names
// cues alongside state changes and ships enough metadata (asset path plus a
// synthesized-tone fallback) for the client to play them. A missing or
// blocked asset therefore degrades to a beep, never to broken game logic.

package audio

import "sort"

// Cue names a sound effect triggered by a state transition.
type Cue string

const (
	CueInterface   Cue = "interface"
	CueLevelUp     Cue = "levelUp"
	CueMatch       Cue = "match"
	CueWrongMatch  Cue = "wrongMatch"
	CueGameOver    Cue = "gameOver"
	CueIntro       Cue = "intro"
	CueAchievement Cue = "achievement"
	CueBox         Cue = "box"
	CueAtmosphere  Cue = "atmosphere" // looping ambience track
)

// Clip describes the audio asset backing a cue.
type Clip struct {
	File   string  `json:"file"`
	Loop   bool    `json:"loop,omitempty"`
	Volume float64 `json:"volume"`
}

// Tone is the synthesized fallback used when the clip cannot be played.
type Tone struct {
	Freq   float64 `json:"freq"`
	Millis int     `json:"millis"`
	Wave   string  `json:"wave"`
}

type entry struct {
	clip Clip
	tone Tone
}

var cues = map[Cue]entry{
	CueInterface:   {Clip{File: "/sounds/sci-fi-interface.mp3", Volume: 0.7}, Tone{880, 100, "sine"}},
	CueLevelUp:     {Clip{File: "/sounds/data-processing.mp3", Volume: 0.7}, Tone{660, 300, "sine"}},
	CueMatch:       {Clip{File: "/sounds/robotic-gun.mp3", Volume: 0.7}, Tone{440, 200, "sine"}},
	CueWrongMatch:  {Clip{File: "/sounds/futuristic-radio.mp3", Volume: 0.7}, Tone{220, 200, "sine"}},
	CueGameOver:    {Clip{File: "/sounds/systems-failure.mp3", Volume: 0.7}, Tone{110, 500, "sine"}},
	CueIntro:       {Clip{File: "/sounds/advertising-futuristic.mp3", Volume: 0.7}, Tone{550, 400, "sine"}},
	CueAchievement: {Clip{File: "/sounds/8-bit-achievement.mp3", Volume: 0.7}, Tone{880, 800, "sine"}},
	CueBox:         {Clip{File: "/sounds/data-processing-droid.mp3", Volume: 0.7}, Tone{440, 200, "sine"}},
	CueAtmosphere:  {Clip{File: "/sounds/atmosphere-synth-pad.mp3", Loop: true, Volume: 0.3}, Tone{}},
}

// ClipFor resolves a cue to its asset. Unknown cues report ok=false; the
// caller falls back to FallbackTone.
func ClipFor(c Cue) (Clip, bool) {
	e, ok := cues[c]
	return e.clip, ok
}

// FallbackTone returns the synthesized tone for a cue. Unknown cues get the
// generic 440 Hz beep so a bad cue name still produces something audible.
func FallbackTone(c Cue) Tone {
	if e, ok := cues[c]; ok && e.tone.Freq > 0 {
		return e.tone
	}
	return Tone{Freq: 440, Millis: 200, Wave: "sine"}
}

// Manifest lists every cue with clip and fallback, for the client to preload.
type ManifestEntry struct {
	Cue      Cue  `json:"cue"`
	Clip     Clip `json:"clip"`
	Fallback Tone `json:"fallback"`
}

func Manifest() []ManifestEntry {
	out := make([]ManifestEntry, 0, len(cues))
	for c, e := range cues {
		t := e.tone
		if t.Freq == 0 {
			t = FallbackTone("")
		}
		out = append(out, ManifestEntry{Cue: c, Clip: e.clip, Fallback: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cue < out[j].Cue })
	return out
}
