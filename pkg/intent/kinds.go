package intent

// Kind names a single test objective. The set is closed: the payload
// mutator has a strategy for every kind, so adding one here means
// teaching the mutator about it too.
type Kind string

const (
	HappyPath        Kind = "HAPPY_PATH"
	HappyPathVariant Kind = "HAPPY_PATH_VARIANT"

	// structural
	RequiredFieldMissing         Kind = "REQUIRED_FIELD_MISSING"
	NullNotAllowed               Kind = "NULL_NOT_ALLOWED"
	TypeViolation                Kind = "TYPE_VIOLATION"
	ArrayItemTypeViolation       Kind = "ARRAY_ITEM_TYPE_VIOLATION"
	UnionNoMatch                 Kind = "UNION_NO_MATCH"
	AdditionalPropertyNotAllowed Kind = "ADDITIONAL_PROPERTY_NOT_ALLOWED"
	ObjectValueTypeViolation     Kind = "OBJECT_VALUE_TYPE_VIOLATION"
	DiscriminatorViolation       Kind = "DISCRIMINATOR_VIOLATION"
	DependencyViolation          Kind = "DEPENDENCY_VIOLATION"

	// constraint
	EnumMismatch                  Kind = "ENUM_MISMATCH"
	PatternMismatch               Kind = "PATTERN_MISMATCH"
	FormatInvalid                 Kind = "FORMAT_INVALID"
	NotMultipleOf                 Kind = "NOT_MULTIPLE_OF"
	BoundaryMinMinusOne           Kind = "BOUNDARY_MIN_MINUS_ONE"
	BoundaryMaxPlusOne            Kind = "BOUNDARY_MAX_PLUS_ONE"
	BoundaryMinLengthMinusOne     Kind = "BOUNDARY_MIN_LENGTH_MINUS_ONE"
	BoundaryMaxLengthPlusOne      Kind = "BOUNDARY_MAX_LENGTH_PLUS_ONE"
	BoundaryMinItemsMinusOne      Kind = "BOUNDARY_MIN_ITEMS_MINUS_ONE"
	BoundaryMaxItemsPlusOne       Kind = "BOUNDARY_MAX_ITEMS_PLUS_ONE"
	BoundaryMinPropertiesMinusOne Kind = "BOUNDARY_MIN_PROPERTIES_MINUS_ONE"
	BoundaryMaxPropertiesPlusOne  Kind = "BOUNDARY_MAX_PROPERTIES_PLUS_ONE"
	ArrayNotUnique                Kind = "ARRAY_NOT_UNIQUE"

	// robustness
	EmptyString     Kind = "EMPTY_STRING"
	WhitespaceOnly  Kind = "WHITESPACE_ONLY"
	ZeroValue       Kind = "ZERO_VALUE"
	NegativeValue   Kind = "NEGATIVE_VALUE"
	EmptyCollection Kind = "EMPTY_COLLECTION"

	// security fuzzing
	SQLInjection     Kind = "SQL_INJECTION"
	XSSInjection     Kind = "XSS_INJECTION"
	CommandInjection Kind = "COMMAND_INJECTION"
	PathTraversal    Kind = "PATH_TRAVERSAL"

	// resource addressing
	ResourceNotFound       Kind = "RESOURCE_NOT_FOUND"
	FormatInvalidPathParam Kind = "FORMAT_INVALID_PATH_PARAM"

	// headers
	HeaderMissing      Kind = "HEADER_MISSING"
	HeaderEnumMismatch Kind = "HEADER_ENUM_MISMATCH"
	HeaderInjection    Kind = "HEADER_INJECTION"
)

// Category groups kinds for reporting.
type Category string

const (
	CategoryHappy      Category = "happy"
	CategoryStructural Category = "structural"
	CategoryConstraint Category = "constraint"
	CategoryRobustness Category = "robustness"
	CategorySecurity   Category = "security"
	CategoryResource   Category = "resource"
	CategoryHeader     Category = "header"
)

// CategoryOf maps a kind to its reporting category.
func CategoryOf(k Kind) Category {
	switch k {
	case HappyPath, HappyPathVariant:
		return CategoryHappy
	case EnumMismatch, PatternMismatch, FormatInvalid, NotMultipleOf,
		BoundaryMinMinusOne, BoundaryMaxPlusOne,
		BoundaryMinLengthMinusOne, BoundaryMaxLengthPlusOne,
		BoundaryMinItemsMinusOne, BoundaryMaxItemsPlusOne,
		BoundaryMinPropertiesMinusOne, BoundaryMaxPropertiesPlusOne,
		ArrayNotUnique:
		return CategoryConstraint
	case EmptyString, WhitespaceOnly, ZeroValue, NegativeValue, EmptyCollection:
		return CategoryRobustness
	case SQLInjection, XSSInjection, CommandInjection, PathTraversal:
		return CategorySecurity
	case ResourceNotFound, FormatInvalidPathParam:
		return CategoryResource
	case HeaderMissing, HeaderEnumMismatch, HeaderInjection:
		return CategoryHeader
	default:
		return CategoryStructural
	}
}
