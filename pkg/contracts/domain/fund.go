package domain

import "fmt"

// FundID identifies one fund (or sub-fund class) across the pipeline.
// CNPJ is the normalized 14-digit registration code; RawCNPJ keeps the
// original formatting from the input list; Class distinguishes sub-funds
// filed under the same parent CNPJ.
type FundID struct {
	CNPJ    string `json:"cnpj"`
	Name    string `json:"name"`
	RawCNPJ string `json:"raw_cnpj"`
	Class   string `json:"class,omitempty"`
}

// Key returns the entity key used for snapshot alignment and diffing.
func (id FundID) Key() string {
	if id.Class == "" {
		return id.CNPJ
	}
	return fmt.Sprintf("%s/%s", id.CNPJ, id.Class)
}

// QAFlags holds the five consistency flags attached to a finalized record.
// All five are always evaluated; there is no "not checked" state.
type QAFlags struct {
	AssetZero                 bool `json:"asset_zero_flag"`
	LiquidityDivergence       bool `json:"liquidity_divergence_flag"`
	EmptyPortfolioWithDefault bool `json:"empty_portfolio_with_default_flag"`
	NPLDivergence             bool `json:"npl_divergence_flag"`
	NoPosition                bool `json:"no_position_flag"`
}

// Any reports whether at least one flag is raised.
func (f QAFlags) Any() bool {
	return f.AssetZero || f.LiquidityDivergence || f.EmptyPortfolioWithDefault ||
		f.NPLDivergence || f.NoPosition
}

// Indicators are the three ratios derived from mapped fields. Each is a
// fraction in [0, inf) or absent when its denominator is zero or missing.
type Indicators struct {
	NPLRatio           Amount `json:"npl_ratio"`
	LiquidityRatio     Amount `json:"liquidity_ratio"`
	ConcentrationRatio Amount `json:"concentration_ratio"`
	// NonperformingTotal is the consolidated defaulted volume used as the
	// NPL numerator: the larger of the existing-credit and receivables
	// defaulted volumes.
	NonperformingTotal Amount `json:"nonperforming_total"`
}

// FundRecord is the canonical flat record for one monthly FIDC filing.
//
// The `source` tag is the selector into the filing document ("GROUP/NODE"
// for nested nodes); the mapping loop in internal/mapper interprets the
// tags, so adding a field here is all it takes to extend the schema.
// Struct order is the canonical field order for export and diffing.
type FundRecord struct {
	ID FundID `json:"id"`

	// Identification
	FundCNPJ          string `json:"fund_cnpj" source:"NR_CNPJ_FUNDO" group:"identification" required:"true"`
	AdminCNPJ         string `json:"admin_cnpj" source:"NR_CNPJ_ADM" group:"identification"`
	ReferenceMonth    string `json:"reference_month" source:"DT_COMPT" group:"identification"`
	CondominiumType   string `json:"condominium_type" source:"TP_CONDOMINIO" group:"identification"`
	ExclusiveFund     string `json:"exclusive_fund" source:"FDO_EXCL" group:"identification"`
	SingleClass       string `json:"single_class" source:"CLASS_UNICA" group:"identification"`
	LinkedQuotaholder string `json:"linked_quotaholder" source:"COTST_VINCUL" group:"identification"`

	// General assets
	TotalAssets         Amount `json:"total_assets" source:"VL_SOM_APLIC_ATIVO" group:"assets"`
	CashHoldings        Amount `json:"cash_holdings" source:"VL_DISPONIB" group:"assets"`
	CreditPosition      Amount `json:"credit_position" source:"VL_CARTEIRA" group:"assets"`
	OtherAssetsTotal    Amount `json:"other_assets_total" source:"VL_SOM_OUTROS_ATIVOS" group:"assets"`
	OtherAssetsShort    Amount `json:"other_assets_short" source:"OUTROS_ATIVOS/VL_OUTRO_VL_RECEB_CURPRZ" group:"assets"`
	OtherAssetsLong     Amount `json:"other_assets_long" source:"OUTROS_ATIVOS/VL_OUTRO_VL_RECEB_LPRAZO" group:"assets"`
	FederalBonds        Amount `json:"federal_bonds" source:"VL_TITPUB_FED" group:"assets"`
	BankDeposits        Amount `json:"bank_deposits" source:"VL_CDB" group:"assets"`
	RepoOperations      Amount `json:"repo_operations" source:"VL_APLIC_OPER_COMPSS" group:"assets"`
	FixedIncomeAssets   Amount `json:"fixed_income_assets" source:"VL_ATIV_FINANC_RF" group:"assets"`
	FIDCShares          Amount `json:"fidc_shares" source:"VL_COTA_FIDC" group:"assets"`

	// Existing credits
	AcquiredCredits              Amount `json:"acquired_credits" source:"CRED_EXISTE/VL_SOM_DICRED_AQUIS" group:"credits"`
	CreditsOverdueCurrent        Amount `json:"credits_overdue_current" source:"CRED_EXISTE/VL_CRED_EXISTE_VENC_ADIMPL" group:"credits"`
	CreditsOverdueDefaulted      Amount `json:"credits_overdue_defaulted" source:"CRED_EXISTE/VL_CRED_EXISTE_VENC_INAD" group:"credits"`
	CreditsTotalOverdueDefaulted Amount `json:"credits_total_overdue_defaulted" source:"CRED_EXISTE/VL_CRED_TOTAL_VENC_INAD" group:"credits"`
	CreditsDefaulted             Amount `json:"credits_defaulted" source:"CRED_EXISTE/VL_CRED_EXISTE_INAD" group:"credits"`
	CreditsPerforming            Amount `json:"credits_performing" source:"CRED_EXISTE/VL_CRED_REFER_DICRED_PERFO" group:"credits"`
	CreditsOverduePending        Amount `json:"credits_overdue_pending" source:"CRED_EXISTE/VL_CRED_VENC_PEND" group:"credits"`
	CreditsCompanyRecovery       Amount `json:"credits_company_recovery" source:"CRED_EXISTE/VL_CRED_ORIGEM_EMP_PROC_RECUP" group:"credits"`
	CreditsPublicRevenue         Amount `json:"credits_public_revenue" source:"CRED_EXISTE/VL_DECOR_RECEIT_PUBLIC" group:"credits"`
	CreditsLawsuit               Amount `json:"credits_lawsuit" source:"CRED_EXISTE/VL_CRED_ACAO_JUDIC" group:"credits"`
	CreditsLegalConstitution     Amount `json:"credits_legal_constitution" source:"CRED_EXISTE/VL_CRED_CONST_JUR_FATRISC" group:"credits"`
	CreditsRecoveryProvision     Amount `json:"credits_recovery_provision" source:"CRED_EXISTE/VL_PROVIS_REDUC_RECUP" group:"credits"`

	// Receivables (direitos creditorios)
	ReceivablesTotal                 Amount `json:"receivables_total" source:"DICRED/VL_DICRED" group:"receivables"`
	ReceivablesAssignor              Amount `json:"receivables_assignor" source:"DICRED/VL_DICRED_CEDENT" group:"receivables"`
	ReceivablesOverdueDefaulted      Amount `json:"receivables_overdue_defaulted" source:"DICRED/VL_DICRED_EXISTE_VENC_INAD" group:"receivables"`
	ReceivablesTotalOverdueDefaulted Amount `json:"receivables_total_overdue_defaulted" source:"DICRED/VL_DICRED_TOTAL_VENC_INAD" group:"receivables"`
	ReceivablesDefaulted             Amount `json:"receivables_defaulted" source:"DICRED/VL_DICRED_EXISTE_INAD" group:"receivables"`
	ReceivablesPerforming            Amount `json:"receivables_performing" source:"DICRED/VL_DICRED_REFER_DICRED_PERFO" group:"receivables"`
	ReceivablesOverduePending        Amount `json:"receivables_overdue_pending" source:"DICRED/VL_DICRED_VENC_PEND" group:"receivables"`
	ReceivablesCompanyRecovery       Amount `json:"receivables_company_recovery" source:"DICRED/VL_DICRED_ORIGEM_EMP_PROC_RECUP" group:"receivables"`
	ReceivablesPublicRevenue         Amount `json:"receivables_public_revenue" source:"DICRED/VL_DICRED_RECEIT_PUBLIC" group:"receivables"`
	ReceivablesLawsuit               Amount `json:"receivables_lawsuit" source:"DICRED/VL_DICRED_ACAO_JUDIC" group:"receivables"`
	ReceivablesRecoveryProvision     Amount `json:"receivables_recovery_provision" source:"DICRED/VL_DICRED_PROVIS_REDUC_RECUP" group:"receivables"`

	// Securities
	SecuritiesTotal       Amount `json:"securities_total" source:"VALORES_MOB/VL_SOM_VALORES_MOB" group:"securities"`
	Debentures            Amount `json:"debentures" source:"VALORES_MOB/VL_DEBT" group:"securities"`
	RealEstateNotes       Amount `json:"real_estate_notes" source:"VALORES_MOB/VL_CRI" group:"securities"`
	PromissoryNotes       Amount `json:"promissory_notes" source:"VALORES_MOB/VL_NP_COMERC" group:"securities"`
	FinancialBills        Amount `json:"financial_bills" source:"VALORES_MOB/VL_LETRA_FINANC" group:"securities"`
	FIFShares             Amount `json:"fif_shares" source:"VALORES_MOB/VL_CLS_COTA_FIF" group:"securities"`
	OtherReceivableRights Amount `json:"other_receivable_rights" source:"VALORES_MOB/VL_OUTRO_DICRED" group:"securities"`

	// Derivatives
	DerivativesTotal          Amount `json:"derivatives_total" source:"MERC_DERIVATIVO/VL_SOM_MERC_DERIVATIVO" group:"derivatives"`
	ForwardLong               Amount `json:"forward_long" source:"MERC_DERIVATIVO/VL_MERC_TERMO_POS_COMPRD" group:"derivatives"`
	OptionsHolder             Amount `json:"options_holder" source:"MERC_DERIVATIVO/VL_MERC_OP_POS_TITUL" group:"derivatives"`
	FuturesPositiveAdjustment Amount `json:"futures_positive_adjustment" source:"MERC_DERIVATIVO/VL_MERC_FUT_AJUST_POSIT" group:"derivatives"`
	SwapReceivable            Amount `json:"swap_receivable" source:"MERC_DERIVATIVO/VL_DIFER_SWAP_RECEB" group:"derivatives"`
	CoverageProvided          Amount `json:"coverage_provided" source:"MERC_DERIVATIVO/VL_COBERT_PREST" group:"derivatives"`
	MarginDeposits            Amount `json:"margin_deposits" source:"MERC_DERIVATIVO/VL_DEPOS_MARGEM" group:"derivatives"`

	// Portfolio segmentation. "sums" rows aggregate the leaf exposures and
	// are excluded from the largest-exposure search.
	SegmentedPortfolioTotal Amount `json:"segmented_portfolio_total" source:"CART_SEGMT/VL_SOM_CART_SEGMT" group:"segmentation-sums"`
	SegIndustrial           Amount `json:"seg_industrial" source:"CART_SEGMT/VL_IND" group:"segmentation"`
	SegRealEstate           Amount `json:"seg_real_estate" source:"CART_SEGMT/VL_MERC_IMOBIL" group:"segmentation"`
	SegAgribusiness         Amount `json:"seg_agribusiness" source:"CART_SEGMT/VL_AGRONEG" group:"segmentation"`
	SegCreditCard           Amount `json:"seg_credit_card" source:"CART_SEGMT/VL_CART_CRED" group:"segmentation"`
	SegLawsuit              Amount `json:"seg_lawsuit" source:"CART_SEGMT/VL_ACAO_JUDIC" group:"segmentation"`
	SegIntellectualProperty Amount `json:"seg_intellectual_property" source:"CART_SEGMT/VL_PROPRD_MARCA_PATENT" group:"segmentation"`

	SegCommercialTotal Amount `json:"seg_commercial_total" source:"SEGMT_COMERC/VL_SOM_SEGMT_COMERC" group:"segmentation-sums"`
	SegCommerce        Amount `json:"seg_commerce" source:"SEGMT_COMERC/VL_COMERC" group:"segmentation"`
	SegRetail          Amount `json:"seg_retail" source:"SEGMT_COMERC/VL_COMERC_VARJ" group:"segmentation"`
	SegLeasing         Amount `json:"seg_leasing" source:"SEGMT_COMERC/VL_ARREND_MERCNT" group:"segmentation"`

	SegServicesTotal  Amount `json:"seg_services_total" source:"SEGMT_SERV/VL_SOM_SEGMT_SERV" group:"segmentation-sums"`
	SegServices       Amount `json:"seg_services" source:"SEGMT_SERV/VL_SERV" group:"segmentation"`
	SegPublicServices Amount `json:"seg_public_services" source:"SEGMT_SERV/VL_SERV_PUBLIC" group:"segmentation"`
	SegEducation      Amount `json:"seg_education" source:"SEGMT_SERV/VL_SERV_EDUC" group:"segmentation"`
	SegEntertainment  Amount `json:"seg_entertainment" source:"SEGMT_SERV/VL_SERV_ENTRETEN" group:"segmentation"`

	SegFinancialTotal        Amount `json:"seg_financial_total" source:"SEGMT_FINANC/VL_SOM_SEGMT_FINANC" group:"segmentation-sums"`
	SegPersonalCredit        Amount `json:"seg_personal_credit" source:"SEGMT_FINANC/VL_FINANC_CRED_PESSOA" group:"segmentation"`
	SegPayrollLoans          Amount `json:"seg_payroll_loans" source:"SEGMT_FINANC/VL_FINANC_CRED_PESSOA_CONSIG" group:"segmentation"`
	SegCorporateCredit       Amount `json:"seg_corporate_credit" source:"SEGMT_FINANC/VL_FINANC_CRED_CORPOR" group:"segmentation"`
	SegMiddleMarket          Amount `json:"seg_middle_market" source:"SEGMT_FINANC/VL_FINANC_MMARKET" group:"segmentation"`
	SegVehicles              Amount `json:"seg_vehicles" source:"SEGMT_FINANC/VL_FINANC_VEICL" group:"segmentation"`
	SegCommercialRealEstate  Amount `json:"seg_commercial_real_estate" source:"SEGMT_FINANC/VL_FINANC_IMOBIL_EMPSRL" group:"segmentation"`
	SegResidentialRealEstate Amount `json:"seg_residential_real_estate" source:"SEGMT_FINANC/VL_FINANC_IMOBIL_RESID" group:"segmentation"`
	SegOtherFinancial        Amount `json:"seg_other_financial" source:"SEGMT_FINANC/VL_FINANC_OUTRO" group:"segmentation"`

	SegFactoringTotal     Amount `json:"seg_factoring_total" source:"SEGMT_FACT/VL_SOM_SEGMT_FACT" group:"segmentation-sums"`
	SegPersonalFactoring  Amount `json:"seg_personal_factoring" source:"SEGMT_FACT/VL_FACT_PESSOA" group:"segmentation"`
	SegCorporateFactoring Amount `json:"seg_corporate_factoring" source:"SEGMT_FACT/VL_FACT_CORPOR" group:"segmentation"`

	SegPublicSectorTotal Amount `json:"seg_public_sector_total" source:"SEGMT_SETOR_PUBLIC/VL_SOM_SEGMT_SETOR_PUBLIC" group:"segmentation-sums"`
	SegCourtOrderedDebt  Amount `json:"seg_court_ordered_debt" source:"SEGMT_SETOR_PUBLIC/VL_SETOR_PUBLIC_PRECAT" group:"segmentation"`
	SegTaxCredits        Amount `json:"seg_tax_credits" source:"SEGMT_SETOR_PUBLIC/VL_SETOR_PUBLIC_CRED_TRIBUT" group:"segmentation"`
	SegRoyalties         Amount `json:"seg_royalties" source:"SEGMT_SETOR_PUBLIC/VL_SETOR_PUBLIC_ROYA" group:"segmentation"`
	SegOtherPublicSector Amount `json:"seg_other_public_sector" source:"SEGMT_SETOR_PUBLIC/VL_SETOR_PUBLIC_OUTRO" group:"segmentation"`

	// Ratios the administrator reported in the filing, normalized to
	// fractions at mapping time. Compared against the computed ratios by
	// the divergence rules.
	ReportedNPLRatio       Amount `json:"reported_npl_ratio" source:"PR_INDICE_INAD" group:"reported"`
	ReportedLiquidityRatio Amount `json:"reported_liquidity_ratio" source:"PR_LIQUIDEZ" group:"reported"`

	// Computed after mapping.
	Indicators Indicators `json:"indicators"`
	Flags      QAFlags    `json:"flags"`

	// Finalized is set once indicators and flags have both been computed.
	// A record is either raw (fields only) or finalized, never in between.
	Finalized bool `json:"finalized"`

	// Document metadata.
	DocumentID    string `json:"document_id,omitempty"`
	ReferenceDate string `json:"reference_date,omitempty"`
}

// Key returns the record's entity key.
func (r *FundRecord) Key() string { return r.ID.Key() }
