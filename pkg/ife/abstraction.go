package ife

import (
	"net/http"
	"sort"
)

// File is the light in-memory abstraction of an IFE file: small fields are
// copied, large payloads stay in the byte region as {offset, size} handles.
// The value may be cloned and shared freely.
type File struct {
	Header      Header
	TileTable   TileTableInfo
	Images      map[string]AssociatedImage
	Annotations AnnotationSet
	Metadata    MetadataInfo
}

// IsIrisFile performs a quick check of the magic constant and the header
// recovery tag. It does not validate the file.
func IsIrisFile(r Region) bool {
	if r.Size() < headerV1_0Size {
		return false
	}
	p, err := r.Bytes(0, headerV1_0Size)
	if err != nil {
		return false
	}
	return loadU32(p[hdrMagic:]) == Magic &&
		RecoveryTag(loadU16(p[hdrRecovery:])) == RecoverHeader
}

// ValidateFileStructure tree-validates the header, tile table, and metadata
// subtrees, checking that every stored offset resolves to a well-formed
// block. It does not interpret payload content. A header warning (such as a
// newer stored extension version) is carried into the returned result.
func ValidateFileStructure(r Region) Result {
	header := NewFileHeader(r.Size())
	headerResult := header.ValidateFull(r)
	if headerResult.Failed() {
		return headerResult
	}

	tileTable, err := header.TileTable(r)
	if err != nil {
		return validationFailuref("%v", err)
	}
	if result := tileTable.ValidateFull(r); result.Failed() {
		return result
	}

	metadata, err := header.Metadata(r)
	if err != nil {
		return validationFailuref("%v", err)
	}
	if result := metadata.ValidateFull(r); result.Failed() {
		return result
	}
	return headerResult
}

// AbstractFileStructure builds the in-memory File abstraction by running the
// full read chain. Tile payload bytes are never copied; layer vectors hold
// only {offset, size} handles.
func AbstractFileStructure(r Region) (File, error) {
	var file File
	header := NewFileHeader(r.Size())

	var err error
	if file.Header, err = header.ReadHeader(r); err != nil {
		return File{}, err
	}
	tileTable, err := header.TileTable(r)
	if err != nil {
		return File{}, err
	}
	if file.TileTable, err = tileTable.ReadTileTable(r); err != nil {
		return File{}, err
	}
	metadata, err := header.Metadata(r)
	if err != nil {
		return File{}, err
	}
	if file.Metadata, err = metadata.ReadMetadata(r); err != nil {
		return File{}, err
	}

	if metadata.HasAttributes(r) {
		attributes, err := metadata.Attributes(r)
		if err != nil {
			return File{}, err
		}
		if file.Metadata.Attributes, err = attributes.ReadAttributes(r); err != nil {
			return File{}, err
		}
	}
	if metadata.HasImageArray(r) {
		images, err := metadata.ImageArray(r)
		if err != nil {
			return File{}, err
		}
		if file.Images, err = images.ReadAssocImages(r, nil); err != nil {
			return File{}, err
		}
		for title := range file.Images {
			file.Metadata.AssociatedImages = append(file.Metadata.AssociatedImages, title)
		}
		sort.Strings(file.Metadata.AssociatedImages)
	}
	if metadata.HasColorProfile(r) {
		icc, err := metadata.ColorProfile(r)
		if err != nil {
			return File{}, err
		}
		if file.Metadata.ICCProfile, err = icc.ReadProfile(r); err != nil {
			return File{}, err
		}
	}
	if metadata.HasAnnotations(r) {
		annotations, err := metadata.Annotations(r)
		if err != nil {
			return File{}, err
		}
		if file.Annotations, err = annotations.ReadAnnotations(r, nil); err != nil {
			return File{}, err
		}
		for id := range file.Annotations.Entries {
			file.Metadata.AnnotationIDs = append(file.Metadata.AnnotationIDs, id)
		}
		sort.Slice(file.Metadata.AnnotationIDs, func(i, j int) bool {
			return file.Metadata.AnnotationIDs[i] < file.Metadata.AnnotationIDs[j]
		})
	}
	return file, nil
}

// IsIrisFileRemote is IsIrisFile against a URL and a known file size.
func IsIrisFileRemote(url string, fileSize uint64, client *http.Client) bool {
	return IsIrisFile(NewRemoteRegion(url, fileSize, client))
}

// ValidateFileStructureRemote is ValidateFileStructure against a URL and a
// known file size.
func ValidateFileStructureRemote(url string, fileSize uint64, client *http.Client) Result {
	return ValidateFileStructure(NewRemoteRegion(url, fileSize, client))
}

// AbstractFileStructureRemote is AbstractFileStructure against a URL and a
// known file size.
func AbstractFileStructureRemote(url string, fileSize uint64, client *http.Client) (File, error) {
	return AbstractFileStructure(NewRemoteRegion(url, fileSize, client))
}
