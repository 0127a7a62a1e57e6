package fragment

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ralt/rpmsync/internal/identity"
	"github.com/ralt/rpmsync/internal/models"
	"github.com/ralt/rpmsync/internal/utils"
	"github.com/sassoftware/go-rpmutils"
)

// Parser reads the index metadata of the package file at path
type Parser func(path string) (*models.Package, error)

// ParsePackage parses an RPM file and extracts metadata
func ParsePackage(path string) (*models.Package, error) {
	checksums, err := utils.CalculateChecksums(path)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksums: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read RPM: %v", models.ErrMalformedPackage, err)
	}

	pkg := &models.Package{
		Name:         getStringTag(rpm, rpmutils.NAME),
		Version:      getStringTag(rpm, rpmutils.VERSION),
		Release:      getStringTag(rpm, rpmutils.RELEASE),
		Epoch:        "0",
		Architecture: getStringTag(rpm, rpmutils.ARCH),
		Summary:      getStringTag(rpm, rpmutils.SUMMARY),
		Description:  getStringTag(rpm, rpmutils.DESCRIPTION),
		Packager:     getStringTag(rpm, rpmutils.PACKAGER),
		Homepage:     getStringTag(rpm, rpmutils.URL),
		License:      getStringTag(rpm, rpmutils.LICENSE),
		Group:        getStringTag(rpm, rpmutils.GROUP),
		Requires:     getStringSliceTag(rpm, rpmutils.REQUIRENAME),
		Provides:     getStringSliceTag(rpm, rpmutils.PROVIDENAME),
		BuildTime:    getIntTag(rpm, rpmutils.BUILDTIME),
	}
	if pkg.Name == "" || pkg.Version == "" {
		return nil, fmt.Errorf("%w: missing name or version in %s", models.ErrMalformedPackage, path)
	}
	if epoch := getIntTag(rpm, rpmutils.EPOCH); epoch > 0 {
		pkg.Epoch = strconv.FormatInt(epoch, 10)
	}

	if installed, err := rpm.Header.InstalledSize(); err == nil {
		pkg.InstalledSize = installed
	}

	pkg.Filename = path
	pkg.Size = checksums.Size
	pkg.SHA256Sum = checksums.SHA256

	return pkg, nil
}

func getStringTag(rpm *rpmutils.Rpm, tag int) string {
	v, _ := identity.StringTag(rpm, tag)
	return v
}

// getIntTag returns the first value of an integer tag of any width, or 0
func getIntTag(rpm *rpmutils.Rpm, tag int) int64 {
	vals, err := rpm.Header.GetUint64s(tag)
	if err != nil || len(vals) == 0 {
		return 0
	}
	return int64(vals[0])
}

// getStringSliceTag safely gets a string slice tag from RPM
func getStringSliceTag(rpm *rpmutils.Rpm, tag int) []string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return nil
	}
	slice, ok := val.([]string)
	if !ok {
		return nil
	}

	var result []string
	for _, s := range slice {
		s = strings.TrimSpace(s)
		// rpmlib() requirements are resolved by rpm itself
		if s != "" && !strings.HasPrefix(s, "rpmlib(") {
			result = append(result, s)
		}
	}
	return result
}
