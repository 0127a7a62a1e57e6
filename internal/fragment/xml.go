package fragment

import (
	"encoding/xml"
	"fmt"

	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/utils"
)

// XML namespaces of the repodata documents
const (
	nsCommon = "http://linux.duke.edu/metadata/common"
	nsRepo   = "http://linux.duke.edu/metadata/repo"
	nsRpm    = "http://linux.duke.edu/metadata/rpm"
)

type metadata struct {
	XMLName       xml.Name `xml:"metadata"`
	Xmlns         string   `xml:"xmlns,attr"`
	XmlnsRpm      string   `xml:"xmlns:rpm,attr"`
	PackagesCount int      `xml:"packages,attr"`
	Packages      []xmlPkg `xml:"package"`
}

type xmlPkg struct {
	Type        string      `xml:"type,attr"`
	Name        string      `xml:"name"`
	Arch        string      `xml:"arch"`
	Version     xmlVersion  `xml:"version"`
	Checksum    xmlChecksum `xml:"checksum"`
	Summary     string      `xml:"summary"`
	Description string      `xml:"description"`
	Packager    string      `xml:"packager,omitempty"`
	URL         string      `xml:"url,omitempty"`
	Time        xmlTime     `xml:"time"`
	Size        xmlSize     `xml:"size"`
	Location    xmlLocation `xml:"location"`
	Format      xmlFormat   `xml:"format"`
}

type xmlVersion struct {
	Epoch string `xml:"epoch,attr"`
	Ver   string `xml:"ver,attr"`
	Rel   string `xml:"rel,attr"`
}

type xmlChecksum struct {
	Type  string `xml:"type,attr"`
	Pkgid string `xml:"pkgid,attr,omitempty"`
	Value string `xml:",chardata"`
}

type xmlTime struct {
	File  int64 `xml:"file,attr"`
	Build int64 `xml:"build,attr"`
}

type xmlSize struct {
	Package   int64 `xml:"package,attr"`
	Installed int64 `xml:"installed,attr"`
	Archive   int64 `xml:"archive,attr"`
}

type xmlLocation struct {
	Href string `xml:"href,attr"`
}

// Elements of the rpm namespace carry it explicitly so that documents
// written by other tools decode into the same fields.
type xmlFormat struct {
	License  string      `xml:"http://linux.duke.edu/metadata/rpm license,omitempty"`
	Group    string      `xml:"http://linux.duke.edu/metadata/rpm group,omitempty"`
	Provides *xmlEntries `xml:"http://linux.duke.edu/metadata/rpm provides,omitempty"`
	Requires *xmlEntries `xml:"http://linux.duke.edu/metadata/rpm requires,omitempty"`
}

type xmlEntries struct {
	Entries []xmlEntry `xml:"http://linux.duke.edu/metadata/rpm entry"`
}

type xmlEntry struct {
	Name string `xml:"name,attr"`
}

func entries(names []string) *xmlEntries {
	if len(names) == 0 {
		return nil
	}
	e := &xmlEntries{}
	for _, name := range names {
		e.Entries = append(e.Entries, xmlEntry{Name: name})
	}
	return e
}

func toXMLPkg(pkg *models.Package) xmlPkg {
	installed := pkg.InstalledSize
	if installed == 0 {
		installed = pkg.Size
	}
	return xmlPkg{
		Type: "rpm",
		Name: pkg.Name,
		Arch: pkg.Architecture,
		Version: xmlVersion{
			Epoch: pkg.Epoch,
			Ver:   pkg.Version,
			Rel:   pkg.Release,
		},
		Checksum: xmlChecksum{
			Type:  "sha256",
			Pkgid: "YES",
			Value: pkg.SHA256Sum,
		},
		Summary:     pkg.Summary,
		Description: pkg.Description,
		Packager:    pkg.Packager,
		URL:         pkg.Homepage,
		Time: xmlTime{
			File:  pkg.BuildTime,
			Build: pkg.BuildTime,
		},
		Size: xmlSize{
			Package:   pkg.Size,
			Installed: installed,
			Archive:   pkg.Size,
		},
		Location: xmlLocation{
			Href: pkg.Filename,
		},
		Format: xmlFormat{
			License:  pkg.License,
			Group:    pkg.Group,
			Provides: entries(pkg.Provides),
			Requires: entries(pkg.Requires),
		},
	}
}

func marshalPrimary(packages []xmlPkg) ([]byte, error) {
	meta := metadata{
		Xmlns:         nsCommon,
		XmlnsRpm:      nsRpm,
		PackagesCount: len(packages),
		Packages:      packages,
	}

	xmlBytes, err := xml.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), xmlBytes...), nil
}

func unmarshalPrimary(data []byte) ([]xmlPkg, error) {
	var meta metadata
	if err := xml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse primary metadata: %w", err)
	}
	return meta.Packages, nil
}

type repomd struct {
	XMLName  xml.Name     `xml:"repomd"`
	Xmlns    string       `xml:"xmlns,attr"`
	XmlnsRpm string       `xml:"xmlns:rpm,attr"`
	Revision int64        `xml:"revision"`
	Data     []repomdData `xml:"data"`
}

type repomdData struct {
	Type         string         `xml:"type,attr"`
	Checksum     repomdChecksum `xml:"checksum"`
	OpenChecksum repomdChecksum `xml:"open-checksum"`
	Location     repomdLocation `xml:"location"`
	Timestamp    int64          `xml:"timestamp"`
	Size         int64          `xml:"size"`
	OpenSize     int64          `xml:"open-size"`
}

type repomdChecksum struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type repomdLocation struct {
	Href string `xml:"href,attr"`
}

// primaryFile is a compressed primary index ready to be written
type primaryFile struct {
	href       string
	compressed []byte
}

func buildPrimary(packages []xmlPkg, compression string, revision int64) (*primaryFile, []byte, error) {
	primaryXML, err := marshalPrimary(packages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate primary.xml: %w", err)
	}

	compressed, err := utils.Compress(compression, primaryXML)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to compress primary.xml: %w", err)
	}

	checksum := utils.SHA256(compressed)
	href := fmt.Sprintf("repodata/%s-primary.xml.%s", checksum, compression)

	md := repomd{
		Xmlns:    nsRepo,
		XmlnsRpm: nsRpm,
		Revision: revision,
		Data: []repomdData{
			{
				Type: "primary",
				Checksum: repomdChecksum{
					Type:  "sha256",
					Value: checksum,
				},
				OpenChecksum: repomdChecksum{
					Type:  "sha256",
					Value: utils.SHA256(primaryXML),
				},
				Location:  repomdLocation{Href: href},
				Timestamp: revision,
				Size:      int64(len(compressed)),
				OpenSize:  int64(len(primaryXML)),
			},
		},
	}

	xmlBytes, err := xml.MarshalIndent(md, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate repomd.xml: %w", err)
	}

	return &primaryFile{href: href, compressed: compressed}, append([]byte(xml.Header), xmlBytes...), nil
}

func unmarshalRepomd(data []byte) (*repomd, error) {
	var md repomd
	if err := xml.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse repomd.xml: %w", err)
	}
	return &md, nil
}
