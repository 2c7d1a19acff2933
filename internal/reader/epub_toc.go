package reader

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/taylorskalyo/goreader/epub"
)

// NCX XML structures for parsing toc.ncx
type ncx struct {
	NavMap navMap `xml:"navMap"`
}

type navMap struct {
	NavPoints []navPoint `xml:"navPoint"`
}

type navPoint struct {
	ID        string     `xml:"id,attr"`
	PlayOrder int        `xml:"playOrder,attr"`
	Label     navLabel   `xml:"navLabel"`
	Content   navContent `xml:"content"`
	Children  []navPoint `xml:"navPoint"`
}

type navLabel struct {
	Text string `xml:"text"`
}

type navContent struct {
	Src string `xml:"src,attr"`
}

// TOC extracts the table of contents from an EPUB file.
func (f *EPUBFormat) TOC(filename string) ([]TOCEntry, error) {
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}

	book := rc.Rootfiles[0]

	ncxData, err := findAndReadNCX(filename, book)
	if err != nil {
		return nil, err
	}

	var toc ncx
	if err := xml.Unmarshal(ncxData, &toc); err != nil {
		return nil, fmt.Errorf("failed to parse NCX: %w", err)
	}

	spineMap, err := buildSpineMap(filename)
	if err != nil {
		return nil, err
	}
	return flattenNavPoints(toc.NavMap.NavPoints, spineMap, 0), nil
}

// ExtractChapters extracts one chapter per non-empty spine item.
func (f *EPUBFormat) ExtractChapters(filename string) ([]Chapter, error) {
	tocByHref, err := tocTitles(filename)
	if err != nil {
		return nil, err
	}

	var chapters []Chapter
	section := 0
	err = walkSpine(filename, func(item *epub.Item, text string) {
		section++
		if strings.TrimSpace(text) == "" {
			return
		}

		title := fmt.Sprintf("Section %d", section)
		if item.HREF != "" {
			if t, ok := tocByHref[item.HREF]; ok {
				title = t
			} else if t, ok := tocByHref[path.Base(item.HREF)]; ok {
				title = t
			}
		}

		chapters = append(chapters, Chapter{Title: title, Text: text})
	})
	if err != nil {
		return nil, err
	}
	return chapters, nil
}

// tocTitles opens filename and maps spine hrefs to NCX titles.
func tocTitles(filename string) (map[string]string, error) {
	rc, err := epub.OpenReader(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open epub: %w", err)
	}
	defer rc.Close()

	if len(rc.Rootfiles) == 0 {
		return nil, fmt.Errorf("no rootfiles found in epub")
	}
	return buildTOCHrefMap(filename, rc.Rootfiles[0]), nil
}

// buildTOCHrefMap parses the NCX and returns a map of href to title
func buildTOCHrefMap(filename string, book *epub.Rootfile) map[string]string {
	result := make(map[string]string)

	ncxData, err := findAndReadNCX(filename, book)
	if err != nil {
		return result
	}

	var toc ncx
	if err := xml.Unmarshal(ncxData, &toc); err != nil {
		return result
	}

	var extract func(points []navPoint)
	extract = func(points []navPoint) {
		for _, np := range points {
			href := np.Content.Src
			title := strings.TrimSpace(np.Label.Text)

			if _, exists := result[href]; !exists {
				result[href] = title
			}
			if idx := strings.Index(href, "#"); idx != -1 {
				baseHref := href[:idx]
				if _, exists := result[baseHref]; !exists {
					result[baseHref] = title
				}
			}
			baseHref := path.Base(href)
			if idx := strings.Index(baseHref, "#"); idx != -1 {
				baseHref = baseHref[:idx]
			}
			if _, exists := result[baseHref]; !exists {
				result[baseHref] = title
			}

			extract(np.Children)
		}
	}
	extract(toc.NavMap.NavPoints)

	return result
}

func findAndReadNCX(filename string, book *epub.Rootfile) ([]byte, error) {
	zr, err := zip.OpenReader(filename)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var ncxPath string
	for _, item := range book.Manifest.Items {
		if item.MediaType == "application/x-dtbncx+xml" {
			ncxPath = item.HREF
			break
		}
	}
	if ncxPath == "" {
		for _, f := range zr.File {
			if strings.HasSuffix(strings.ToLower(f.Name), ".ncx") {
				ncxPath = f.Name
				break
			}
		}
	}

	if ncxPath == "" {
		return nil, fmt.Errorf("no NCX file found in EPUB")
	}

	for _, f := range zr.File {
		if f.Name == ncxPath || strings.HasSuffix(f.Name, "/"+ncxPath) || path.Base(f.Name) == path.Base(ncxPath) {
			rc, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}

	return nil, fmt.Errorf("NCX file %s not found in archive", ncxPath)
}

type spineInfo struct {
	chapter int
	preview string
}

// buildSpineMap maps spine hrefs to chapter indices as ExtractChapters
// numbers them (empty spine items are skipped).
func buildSpineMap(filename string) (map[string]spineInfo, error) {
	m := make(map[string]spineInfo)
	chapter := 0

	err := walkSpine(filename, func(item *epub.Item, text string) {
		words := strings.Fields(text)
		if len(words) == 0 {
			return
		}

		previewWords := words
		if len(previewWords) > 10 {
			previewWords = previewWords[:10]
		}
		info := spineInfo{chapter: chapter, preview: strings.Join(previewWords, " ") + "..."}

		if item.HREF != "" {
			m[item.HREF] = info
			m[path.Base(item.HREF)] = info
		}
		chapter++
	})
	return m, err
}

func flattenNavPoints(points []navPoint, spineMap map[string]spineInfo, level int) []TOCEntry {
	var entries []TOCEntry

	for _, np := range points {
		href := np.Content.Src
		baseHref := href
		if idx := strings.Index(href, "#"); idx != -1 {
			baseHref = href[:idx]
		}

		info, ok := spineMap[baseHref]
		if !ok {
			info = spineMap[path.Base(baseHref)]
		}

		entries = append(entries, TOCEntry{
			Title:   strings.TrimSpace(np.Label.Text),
			Preview: info.preview,
			Chapter: info.chapter,
			Level:   level,
		})
		if len(np.Children) > 0 {
			entries = append(entries, flattenNavPoints(np.Children, spineMap, level+1)...)
		}
	}

	return entries
}
