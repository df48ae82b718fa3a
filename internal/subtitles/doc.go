// Package subtitles turns a caption timeline into burn-in subtitle scripts.
//
// Each presentation Style maps to an Advanced SubStation Alpha (ASS) style
// block and event layout that ffmpeg's ass filter renders onto the video.
// RenderASS is a pure function of the timeline, style, and canvas size, so the
// same inputs always yield byte-identical scripts. RenderSRT exports a plain
// sidecar for players that cannot burn captions in.
package subtitles
