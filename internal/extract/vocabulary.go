package extract

// Key vocabularies of the supported registry document shapes.
var (
	companyBlockKeys = []string{"companyDetails", "company", "identity", "anagrafica"}
	identityKeys     = []string{"vatCode", "vatNumber", "partitaIva", "piva", "taxCode", "fiscalCode", "codiceFiscale"}
	projectionKeys   = []string{
		"companyName", "name", "denominazione", "legalForm", "activityStatus", "status",
		"reaCode", "rea", "incorporationDate", "registrationDate",
	}

	contactBlockKeys = []string{"contacts", "contactDetails"}
	phoneKeys        = []string{"phone", "telephone", "phoneNumber", "tel"}
	emailKeys        = []string{"email", "mail"}
	pecKeys          = []string{"pec", "certifiedEmail", "pecEmail"}
	websiteKeys      = []string{"website", "webSite", "url", "sito"}

	registeredOfficeKeys = []string{"address", "registeredOffice", "sede", "sedeLegale"}
	otherOfficeKeys      = []string{"otherOffices", "localUnits", "unitaLocali", "branches"}
	streetKeys           = []string{"street", "streetName", "address", "toponym", "via", "indirizzo"}
	streetNumberKeys     = []string{"streetNumber", "civicNumber", "numeroCivico"}
	zipKeys              = []string{"zipCode", "zip", "postalCode", "cap"}
	townKeys             = []string{"town", "city", "comune", "municipality"}
	provinceKeys         = []string{"province", "provincia"}
	regionKeys           = []string{"region", "regione"}
	countryKeys          = []string{"country", "nazione", "stato"}

	classificationBlockKeys = []string{"atecoClassification", "ateco", "classification"}

	balanceBlockKeys = []string{"balance", "balanceSheet", "balanceSheets", "bilancio"}
	yearKeys         = []string{"year", "fiscalYear", "anno"}
	currencyKeys     = []string{"currency", "valuta"}
	codeKeys         = []string{"code", "codice"}
	amountKeys       = []string{"value", "amount", "importo"}
	descriptionKeys  = []string{"description", "descrizione"}
)

// addressVocabulary scores candidate objects in the recursive address tier.
var addressVocabulary = keySet(
	[]string{"street", "streetName", "address", "toponym", "via", "indirizzo"},
	zipKeys, townKeys, provinceKeys, regionKeys, countryKeys,
)

// recognizedRootKeys are the root keys some extractor reads.
var recognizedRootKeys = keySet(
	companyBlockKeys, identityKeys, projectionKeys,
	contactBlockKeys, phoneKeys, emailKeys, pecKeys, websiteKeys,
	registeredOfficeKeys, otherOfficeKeys,
	classificationBlockKeys, balanceBlockKeys, yearKeys, currencyKeys,
	dateKeys(),
)
