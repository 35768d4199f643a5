package catalog

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"prom-markup/internal/domain"

	"golang.org/x/text/encoding/ianaindex"
)

// ymlCatalog mirrors the subset of the YML feed dialect the markup engine needs.
// Repeated elements are always slices so single-element feeds keep their shape.
type ymlCatalog struct {
	XMLName xml.Name `xml:"yml_catalog"`
	Shop    *ymlShop `xml:"shop"`
}

type ymlShop struct {
	Categories *ymlCategories `xml:"categories"`
	Offers     *ymlOffers     `xml:"offers"`
}

type ymlCategories struct {
	Items []ymlCategory `xml:"category"`
}

type ymlCategory struct {
	ID       string `xml:"id,attr"`
	ParentID string `xml:"parentId,attr"`
	Name     string `xml:",chardata"`
}

type ymlOffers struct {
	Items []ymlOffer `xml:"offer"`
}

type ymlOffer struct {
	ID              string    `xml:"id,attr"`
	CategoryIDAttr  string    `xml:"categoryId,attr"`
	CategoryID      string    `xml:"categoryId"`
	QuantityInStock string    `xml:"quantity_in_stock"`
	Price           string    `xml:"price"`
	OldPrice        string    `xml:"oldprice"`
	Name            offerName `xml:"name"`
}

// offerName holds the element's CDATA content when it has any, its plain text otherwise
type offerName string

func (n *offerName) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw struct {
		Inner string `xml:",innerxml"`
	}
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}

	cdata, rest := splitCDATA(raw.Inner)
	if v := strings.TrimSpace(cdata); v != "" {
		*n = offerName(v)
		return nil
	}

	var plain struct {
		Text string `xml:",chardata"`
	}
	if err := xml.Unmarshal([]byte("<v>"+rest+"</v>"), &plain); err != nil {
		return err
	}
	*n = offerName(strings.TrimSpace(plain.Text))
	return nil
}

// splitCDATA separates the CDATA sections of raw inner XML from the remaining markup
func splitCDATA(inner string) (cdata, rest string) {
	const open, closing = "<![CDATA[", "]]>"

	var c, r strings.Builder
	for {
		i := strings.Index(inner, open)
		if i < 0 {
			r.WriteString(inner)
			break
		}
		r.WriteString(inner[:i])
		inner = inner[i+len(open):]

		j := strings.Index(inner, closing)
		if j < 0 {
			c.WriteString(inner)
			break
		}
		c.WriteString(inner[:j])
		inner = inner[j+len(closing):]
	}
	return c.String(), r.String()
}

// Parse turns a raw YML feed into normalized offers and categories.
// Category offer counts are left at zero; see AggregateOfferCounts.
func Parse(content []byte) (*domain.CatalogSnapshot, error) {
	return ParseReader(bytes.NewReader(content))
}

// ParseReader is the streaming variant of Parse
func ParseReader(r io.Reader) (*domain.CatalogSnapshot, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = charsetReader

	var doc ymlCatalog
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidFormat, err)
	}

	if doc.Shop == nil {
		return nil, fmt.Errorf("%w: missing yml_catalog.shop", domain.ErrInvalidFormat)
	}

	snapshot := &domain.CatalogSnapshot{
		Categories: []domain.Category{},
		Offers:     []domain.Offer{},
	}

	if doc.Shop.Categories != nil {
		for _, c := range doc.Shop.Categories.Items {
			snapshot.Categories = append(snapshot.Categories, domain.Category{
				ID:       strings.TrimSpace(c.ID),
				ParentID: strings.TrimSpace(c.ParentID),
				Name:     strings.TrimSpace(c.Name),
			})
		}
	}

	if doc.Shop.Offers != nil {
		for _, o := range doc.Shop.Offers.Items {
			categoryID := o.CategoryID
			if strings.TrimSpace(categoryID) == "" {
				categoryID = o.CategoryIDAttr
			}

			snapshot.Offers = append(snapshot.Offers, domain.Offer{
				ID:              strings.TrimSpace(o.ID),
				CategoryID:      strings.TrimSpace(categoryID),
				QuantityInStock: int(parseNumber(o.QuantityInStock)),
				Price:           parseNumber(o.Price),
				OldPrice:        parseNumber(o.OldPrice),
				Name:            string(o.Name),
			})
		}
	}

	return snapshot, nil
}

// parseNumber reads a feed number. Absent or malformed values are 0.
func parseNumber(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", ".")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// charsetReader decodes feeds declared in a non UTF-8 charset, windows-1251 being the common case
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
	}
	if enc == nil {
		return nil, errors.New("unsupported charset " + strconv.Quote(label))
	}
	return enc.NewDecoder().Reader(input), nil
}
