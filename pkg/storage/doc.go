// Package storage saves query results to an output directory.
//
// File names come from the result name with unsafe characters replaced and
// an extension chosen by format. Writes go to a temporary file first and
// are renamed into place, so a reader never sees a partial result. Unless
// overwriting is enabled, a name that is already on disk is refused with
// ErrExists.
//
// Usage:
//
//	manager, err := storage.NewManager("results", false)
//	if err != nil {
//		return err
//	}
//
//	path, err := manager.Save(bytes.NewReader(result.Raw), "iss", query.FormatJSON)
package storage
