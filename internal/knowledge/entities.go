package knowledge

import "regexp"

type extractor struct {
	entityType EntityType
	pattern    *regexp.Regexp
}

// extractors is the fixed set of regex shapes EntityMemory scans task and
// answer text with. None of these are intended to be exhaustive NER —
// they catch the common enterprise-document shapes the pipeline actually
// sees (invoice/account/ticket ids, dollar amounts, ISO-ish dates, "Acme
// Corp"-style vendor names, "Jane Doe"-style person names).
var extractors = []extractor{
	{EntityID, regexp.MustCompile(`\b[A-Z]{2,5}-\d{3,8}\b|\b(?:INV|ACCT|TICKET|ORDER|PO)[-#]?\d{3,10}\b`)},
	{EntityAmount, regexp.MustCompile(`\$\s?\d{1,3}(?:,\d{3})*(?:\.\d{2})?`)},
	{EntityDate, regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},?\s+\d{4}\b`)},
	{EntityVendor, regexp.MustCompile(`\b[A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)*\s(?:Inc|LLC|Corp|Co|Ltd|Group)\.?\b`)},
	{EntityPerson, regexp.MustCompile(`\b[A-Z][a-z]+\s[A-Z][a-z]+\b`)},
	{EntityProduct, regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:\s(?:Plan|Tier|Package|Edition|Suite))\b`)},
}
