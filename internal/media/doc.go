// Package media handles the audio plumbing around the pipeline: ffmpeg-based
// extraction of mono PCM audio from video, WAV encode/decode for the fixed
// 16-bit mono format the speech services exchange, and the Track accumulator
// the assembly engine appends clips and silence to.
package media
