package segment

import (
	"path/filepath"
	"strings"
)

// Filename-suffix conventions chain the stage artifacts together so every
// stage can derive its output path from its input path:
//
//	original.mp4
//	original_audio.wav
//	original_transcription.json
//	original_translated.json
//	original_translated_fixed.json
//	original_audio_en.wav  (plus original_placements.json)
const (
	audioSuffix         = "_audio.wav"
	transcriptionSuffix = "_transcription.json"
	translationSuffix   = "_translated.json"
	reviewedSuffix      = "_translated_fixed.json"
	placementsSuffix    = "_placements.json"
)

// AudioPath derives the extracted-audio path from a video path.
func AudioPath(videoPath string) string {
	return basePath(videoPath) + audioSuffix
}

// TranscriptionPath derives the stage-2 artifact path from an audio path.
func TranscriptionPath(audioPath string) string {
	return chain(audioPath, audioSuffix, transcriptionSuffix)
}

// TranslationPath derives the stage-3 artifact path from a transcription path.
func TranslationPath(transcriptionPath string) string {
	return chain(transcriptionPath, transcriptionSuffix, translationSuffix)
}

// ReviewedPath derives the stage-3.5 artifact path from a translation path.
func ReviewedPath(translationPath string) string {
	return chain(translationPath, translationSuffix, reviewedSuffix)
}

// TrackPath derives the dubbed-audio path from a reviewed artifact path.
// lang is the target language tag; only its primary subtag is used, matching
// the *_audio_en.wav convention.
func TrackPath(reviewedPath, lang string) string {
	code := strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexByte(code, '-'); i > 0 {
		code = code[:i]
	}
	if code == "" {
		code = "en"
	}
	return chain(reviewedPath, reviewedSuffix, "_audio_"+code+".wav")
}

// PlacementsPath derives the placement artifact path from a reviewed
// artifact path.
func PlacementsPath(reviewedPath string) string {
	return chain(reviewedPath, reviewedSuffix, placementsSuffix)
}

// chain swaps the expected suffix for the next stage's suffix. When the input
// does not follow the convention its extension is replaced instead, so
// arbitrarily named inputs still produce sensible outputs.
func chain(path, fromSuffix, toSuffix string) string {
	if strings.HasSuffix(path, fromSuffix) {
		return strings.TrimSuffix(path, fromSuffix) + toSuffix
	}
	return basePath(path) + toSuffix
}

func basePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext)
}
