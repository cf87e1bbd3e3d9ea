package buildreqcheck

// SourcePackage carries a path to a source archive (an RPM .src.rpm) and the
// set of its declared build Requirements.
type SourcePackage struct {
	Path string

	// Requires is the set of interest: declared BuildRequires with
	// capability markers already filtered out via FilterCapabilities.
	Requires RequirementSet

	// Name is the source package name, e.g. "zlib", used only for the final
	// report line and log messages.
	Name string
}

// FileFormat is the tagged variant the content comparator dispatches on.
type FileFormat int

const (
	FormatUnknown FileFormat = iota
	FormatELF
	FormatTypelib
	FormatHTML
	FormatByteCompiled
	FormatZip
	FormatGzip
)

func (f FileFormat) String() string {
	switch f {
	case FormatELF:
		return "elf"
	case FormatTypelib:
		return "typelib"
	case FormatHTML:
		return "html"
	case FormatByteCompiled:
		return "byte-compiled"
	case FormatZip:
		return "zip"
	case FormatGzip:
		return "gzip"
	default:
		return "unknown"
	}
}

// ContentItem is a filesystem path plus its detected format.
type ContentItem struct {
	Path   string
	Format FileFormat
}

// FileMeta is the per-file metadata tuple carried by a FileEntry: the
// subset of RPM per-file header arrays relevant to equivalence
// (%{FILECAPS}, %{FILECOLORS}, %{FILECONTEXTS}, %{FILEPROVIDE},
// %{FILEREQUIRE}, %{FILEDEPENDSX}, and the rest of the per-file arrays),
// all populated by internal/rpmmeta.Reader.Files in a single query.
type FileMeta struct {
	Size        int64
	Mode        uint32
	User        string
	Group       string
	Digest      string
	LinkTo      string
	Device      uint32
	Rdev        uint32
	Lang        string
	Flags       int32
	VerifyFlags int32
	Caps        string
	Color       int32
	Contexts    string
	Provides    []string
	Requires    []string
	Depends     []string
	State       int32
	Nlinks      int32
}

// FileEntry is a (path, metadata) pair drawn from a BuiltPackage's header.
// Entries matching the ignore-pattern set (build-id symlinks,
// compiler self-check artifacts) are excluded by the caller before
// comparison; see internal/pkgcompare.
type FileEntry struct {
	Path string
	Meta FileMeta
}

// BuiltPackage carries a path to a built binary archive plus a lazily
// accessed header and file list. Header and Files are populated by the
// metadata reader on first access; callers in this package never assume
// they are already populated.
type BuiltPackage struct {
	Path string

	// Header maps recognized RPM tag names to their formatted value, e.g.
	// "NAME" -> "zlib", "VERSION" -> "1.2.11". Populated lazily.
	Header map[string]string

	// Files is the per-file metadata table, keyed by file path. Populated
	// lazily, in lockstep with Header.
	Files map[string]FileMeta

	loaded bool
}

// Loaded reports whether Header and Files have been populated.
func (p *BuiltPackage) Loaded() bool { return p.loaded }

// MarkLoaded records that Header and Files have been populated by the
// metadata reader. Exported so that code outside this package
// (internal/pkgcompare, which loads packages through the metadata reader)
// can participate in the lazy-load contract without this package importing
// it.
func (p *BuiltPackage) MarkLoaded() { p.loaded = true }

// CandidateSubset is a set of Requirements hypothesized to be unneeded: the
// build is performed with these forcibly absent from the chroot.
type CandidateSubset = RequirementSet
