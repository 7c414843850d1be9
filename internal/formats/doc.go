// Package formats is the registry of file types the catalog indexes,
// mapping extensions to asset kinds and running companion-file validation
// for composite model formats like OBJ and glTF.
package formats
