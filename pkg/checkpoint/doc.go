// Package checkpoint records which queries of a batch file have finished so
// an interrupted run can resume without spending rate budget on them again.
//
// A checkpoint is tied to the batch file's contents by a SHA-256 digest;
// editing the file invalidates it. Checkpoints are stored in platform
// data directories:
//   - Linux: ~/.local/share/spacetrack/checkpoints/
//   - macOS: ~/Library/Application Support/spacetrack/checkpoints/
//   - Windows: %APPDATA%/spacetrack/checkpoints/
package checkpoint
